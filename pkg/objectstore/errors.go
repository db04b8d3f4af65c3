package objectstore

import "errors"

// ErrObjectMissing is returned by Stat when no object exists at the
// key. Callers decide how to surface it: the transfer verifier treats
// it as an incomplete upload, the resolver as an internal error.
var ErrObjectMissing = errors.New("object not found in storage")
