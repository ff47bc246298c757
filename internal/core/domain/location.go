package domain

import (
	"fmt"
	"path"
	"strings"
)

// Location is a parsed source location of the form scheme://bucket/object.
type Location struct {
	Scheme string
	Bucket string
	Object string
}

// String renders the location in its canonical form.
func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Object
}

// ParseLocation parses scheme://bucket/object. The object part may contain slashes.
func ParseLocation(s string) (Location, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return Location{}, fmt.Errorf("%w: location %q has no scheme", ErrInvalidInput, s)
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return Location{}, fmt.Errorf("%w: location %q has no bucket or object", ErrInvalidInput, s)
	}
	return Location{Scheme: scheme, Bucket: bucket, Object: object}, nil
}

// OwnerOf returns the first path segment of an object name.
// Objects at the bucket root have no owner.
func OwnerOf(objectName string) (string, bool) {
	owner, rest, ok := strings.Cut(objectName, "/")
	if !ok || owner == "" || rest == "" {
		return "", false
	}
	return owner, true
}

// DishNameOf returns the file stem of an object name.
func DishNameOf(objectName string) string {
	base := path.Base(objectName)
	return strings.TrimSuffix(base, path.Ext(base))
}
