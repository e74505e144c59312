package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edashow/mediaflow/internal/optimizer"
	"github.com/edashow/mediaflow/internal/storage"
)

func NewObjectStoreProcessor(store storage.ObjectStore, engine Engine) (*Processor, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	return NewProcessor(ObjectStoreFetcher{Storage: store}, engine, ObjectStoreEmitter{Storage: store})
}

type ObjectStoreFetcher struct {
	Storage storage.ObjectStore
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.ObjectKey)
}

type ObjectStoreEmitter struct {
	Storage storage.ObjectStore
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, res optimizer.Result) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}

	key := OutputKey(req.MediaID, res.Format)
	if err := e.Storage.WriteObject(ctx, key, res.Data, optimizer.MimeType(res.Format)); err != nil {
		return Output{}, err
	}
	return outputFor(key, res), nil
}
