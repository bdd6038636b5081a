package config

import "errors"

var (
	// ErrNoProfiles is returned when a config file declares an empty profiles map.
	ErrNoProfiles = errors.New("config declares no profiles")
	// ErrUnknownDefaultProfile is returned when settings.default_profile names no loaded profile.
	ErrUnknownDefaultProfile = errors.New("default profile is not defined")
)
