package document

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/nimburion/docstore/pkg/failure"
	mongostore "github.com/nimburion/docstore/pkg/store/mongodb"
)

// classify maps executor and driver errors onto failure kinds. Errors that already carry a
// kind pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}

	kind := failure.KindStoreFailure
	switch {
	case errors.Is(err, ErrNoMatch), errors.Is(err, mongo.ErrNoDocuments):
		kind = failure.KindNotFound
	case errors.Is(err, context.Canceled):
		kind = failure.KindCanceled
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		kind = failure.KindTimeout
	case mongo.IsDuplicateKeyError(err):
		kind = failure.KindDuplicateKey
	case isUnavailable(err):
		kind = failure.KindStoreUnavailable
	}
	return failure.Wrap(kind, err, "").WithOp(op)
}

func isUnavailable(err error) bool {
	if errors.Is(err, mongostore.ErrClosed) || errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	if mongo.IsNetworkError(err) {
		return true
	}
	var sel topology.ServerSelectionError
	return errors.As(err, &sel)
}

// outcome is the metrics label for err.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := failure.KindOf(err); k != "" {
		return string(k)
	}
	return string(failure.KindStoreFailure)
}
