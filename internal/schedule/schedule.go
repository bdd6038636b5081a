// Package schedule reads and edits per-day block plans stored as YAML files
// named <dir>/<YYYY-MM-DD>.yaml.
package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// DateLayout is the layout of day keys and plan file names.
const DateLayout = "2006-01-02"

// Target keywords accepted by Resolve.
const (
	TargetToday     = "today"
	TargetTomorrow  = "tomorrow"
	TargetYesterday = "yesterday"
)

// Day is one day's plan.
type Day struct {
	Date   string         `json:"date" yaml:"-"`
	Blocks []models.Block `json:"blocks" yaml:"blocks"`
}

// Store is a directory of day plan files. Writes are serialized.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the plan directory.
func (s *Store) Dir() string { return s.dir }

// Resolve turns a target (today, tomorrow, yesterday or YYYY-MM-DD) into a day
// key relative to now. An empty target means today.
func Resolve(target string, now time.Time) (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(target)); t {
	case "", TargetToday:
		return now.Format(DateLayout), nil
	case TargetTomorrow:
		return now.AddDate(0, 0, 1).Format(DateLayout), nil
	case TargetYesterday:
		return now.AddDate(0, 0, -1).Format(DateLayout), nil
	default:
		d, err := time.Parse(DateLayout, t)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
		return d.Format(DateLayout), nil
	}
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, date+".yaml")
}

// Load reads the plan for date. Blocks come back sorted by start time with
// minutes filled in from start/end where absent.
func (s *Store) Load(date string) (Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(date)
}

func (s *Store) load(date string) (Day, error) {
	data, err := os.ReadFile(s.path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Day{}, fmt.Errorf("%w: %s", ErrDayNotFound, date)
		}
		return Day{}, fmt.Errorf("read day plan %s: %w", date, err)
	}

	var day Day
	if err := yaml.Unmarshal(data, &day); err != nil {
		return Day{}, fmt.Errorf("%w: %s: %v", ErrInvalidDay, date, err)
	}
	day.Date = date
	for i := range day.Blocks {
		b := &day.Blocks[i]
		d, err := b.Duration()
		if err != nil {
			return Day{}, fmt.Errorf("%w: %s: block %q: %v", ErrInvalidDay, date, b.Name, err)
		}
		if b.Minutes == 0 {
			b.Minutes = int((d + time.Minute - 1) / time.Minute)
		}
	}
	sortBlocks(day.Blocks)
	return day, nil
}

// BlocksFor resolves target against now and returns that day's blocks.
func (s *Store) BlocksFor(target string, now time.Time) (Day, error) {
	date, err := Resolve(target, now)
	if err != nil {
		return Day{}, err
	}
	return s.Load(date)
}

// Save writes day to its plan file, replacing any existing one.
func (s *Store) Save(day Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(day)
}

func (s *Store) save(day Day) error {
	if _, err := time.Parse(DateLayout, day.Date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, day.Date)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create schedule directory: %w", err)
	}
	data, err := yaml.Marshal(day)
	if err != nil {
		return fmt.Errorf("marshal day plan: %w", err)
	}
	tmp := s.path(day.Date) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write day plan: %w", err)
	}
	if err := os.Rename(tmp, s.path(day.Date)); err != nil {
		return fmt.Errorf("write day plan: %w", err)
	}
	slog.Debug("Store.Save: wrote day plan", "date", day.Date, "blocks", len(day.Blocks))
	return nil
}

// Reschedule shifts every block starting at or after from by shiftMinutes and
// persists the result. An empty from shifts the whole day. Blocks without a
// start time are left alone. A shift that would move any start across midnight
// fails with ErrShiftOutOfDay and leaves the plan untouched.
func (s *Store) Reschedule(date, from string, shiftMinutes int) (Day, error) {
	var cutoff time.Duration
	if from != "" {
		c, err := models.ParseClock(from)
		if err != nil {
			return Day{}, fmt.Errorf("from: %w", err)
		}
		cutoff = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.load(date)
	if err != nil {
		return Day{}, err
	}

	if shiftMinutes <= -24*60 || shiftMinutes >= 24*60 {
		return Day{}, fmt.Errorf("%w: %d minutes", ErrShiftOutOfDay, shiftMinutes)
	}
	shift := time.Duration(shiftMinutes) * time.Minute
	for _, b := range day.Blocks {
		if b.Start == "" {
			continue
		}
		start, err := models.ParseClock(b.Start)
		if err != nil || start < cutoff {
			continue
		}
		if moved := start + shift; moved < 0 || moved >= 24*time.Hour {
			return Day{}, fmt.Errorf("%w: block %q at %s shifted by %d minutes", ErrShiftOutOfDay, b.Name, b.Start, shiftMinutes)
		}
	}

	moved := 0
	for i := range day.Blocks {
		b := &day.Blocks[i]
		if b.Start == "" {
			continue
		}
		start, err := models.ParseClock(b.Start)
		if err != nil || start < cutoff {
			continue
		}
		b.Start = models.FormatClock(start + shift)
		if b.End != "" {
			if end, err := models.ParseClock(b.End); err == nil {
				b.End = models.FormatClock(end + shift)
			}
		}
		moved++
	}
	sortBlocks(day.Blocks)

	if err := s.save(day); err != nil {
		return Day{}, err
	}
	slog.Info("Store.Reschedule: shifted blocks", "date", date, "from", from, "shift_minutes", shiftMinutes, "moved", moved)
	return day, nil
}

// sortBlocks orders blocks by start time. Blocks without a start keep their
// relative order and go last.
func sortBlocks(blocks []models.Block) {
	key := func(b models.Block) time.Duration {
		if b.Start == "" {
			return 1<<63 - 1
		}
		d, err := models.ParseClock(b.Start)
		if err != nil {
			return 1<<63 - 1
		}
		return d
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return key(blocks[i]) < key(blocks[j])
	})
}
