package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Minimal internal validator to avoid external dependency. Supports:
// - required
// - email (basic RFC-ish shape)
// - nameok (letters, numbers, space, hyphen, apostrophe, accented chars, 1-100)
// - msgbody (10-2000 chars)
// - chatmsg (1-2000 chars)

var (
	reEmail  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	reNameOK = regexp.MustCompile(`^[\p{L}0-9 \-.']{1,100}$`)
)

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		parts := strings.Split(tag, ",")
		fv := v.Field(i)
		var sval string
		if fv.IsValid() && fv.Kind() == reflect.String {
			sval = fv.String()
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			switch p {
			case "required":
				if strings.TrimSpace(sval) == "" {
					return errors.New(field.Name + " is required")
				}
			case "email":
				if sval != "" && !reEmail.MatchString(sval) {
					return errors.New(field.Name + " must be a valid email address")
				}
			case "nameok":
				if sval != "" && !reNameOK.MatchString(sval) {
					return errors.New(field.Name + " contains invalid characters")
				}
			case "msgbody":
				// limits are in characters, not bytes; accented letters
				// are multi-byte in UTF-8
				if l := utf8.RuneCountInString(strings.TrimSpace(sval)); l < 10 || l > 2000 {
					return errors.New(field.Name + " must be between 10 and 2000 characters")
				}
			case "chatmsg":
				if l := utf8.RuneCountInString(strings.TrimSpace(sval)); l < 1 || l > 2000 {
					return errors.New(field.Name + " must be between 1 and 2000 characters")
				}
			}
		}
	}
	return nil
}
