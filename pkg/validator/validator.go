package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	MaxNameLen     = 100
	MaxUsernameLen = 50
	MaxBioLen      = 500
)

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ValidateProfile checks the length of the fields that are present. Empty
// values are allowed; the profile store accepts them.
func ValidateProfile(name, username, bio *string) ValidationErrors {
	errs := make(ValidationErrors)

	if name != nil && utf8.RuneCountInString(*name) > MaxNameLen {
		errs.Add("name", "Name is too long")
	}

	if username != nil {
		u := strings.TrimSpace(*username)
		if u != *username {
			errs.Add("username", "Username cannot start or end with spaces")
		} else if utf8.RuneCountInString(u) > MaxUsernameLen {
			errs.Add("username", "Username is too long")
		}
	}

	if bio != nil && utf8.RuneCountInString(*bio) > MaxBioLen {
		errs.Add("bio", "Bio is too long")
	}

	return errs
}

// ValidateAvatar checks an uploaded avatar before it is queued.
func ValidateAvatar(contentType string, size, maxSize int64) ValidationErrors {
	errs := make(ValidationErrors)

	switch {
	case size == 0:
		errs.Add("file", "File is empty")
	case size > maxSize:
		errs.Add("file", fmt.Sprintf("File must be at most %d bytes", maxSize))
	}

	if !avatarTypes[contentType] {
		errs.Add("file", "File must be a JPEG, PNG or GIF image")
	}

	return errs
}
