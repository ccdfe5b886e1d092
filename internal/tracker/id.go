package tracker

import (
	"regexp"

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var idRe = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ValidID reports whether s has the 24 hex character record id format.
func ValidID(s string) bool {
	return idRe.MatchString(s)
}

// NewID returns a fresh record id.
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ParseID converts s to an ObjectID. A malformed id is reported as not found,
// since no record can carry it.
func ParseID(kind, s string) (primitive.ObjectID, error) {
	if !ValidID(s) {
		return primitive.NilObjectID, errors.NotFoundf("%s %q", kind, s)
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, errors.NotFoundf("%s %q", kind, s)
	}
	return id, nil
}
