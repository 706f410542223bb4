package compilecache

import (
	"context"
	"errors"
)

// Layered reads through stores in order, fastest first. A hit in a later
// layer is copied into every earlier layer. Writes and deletes go to every
// layer.
type Layered struct {
	layers []Store
}

// NewLayered stacks stores; nil entries are skipped.
func NewLayered(stores ...Store) *Layered {
	l := &Layered{}
	for _, s := range stores {
		if s != nil {
			l.layers = append(l.layers, s)
		}
	}
	return l
}

// Get returns the first hit. Errors other than ErrNotFound from a layer are
// remembered and returned only if no layer hits.
func (l *Layered) Get(ctx context.Context, key string) ([]byte, error) {
	var firstErr error
	for i, s := range l.layers {
		data, err := s.Get(ctx, key)
		if err == nil {
			for _, earlier := range l.layers[:i] {
				_ = earlier.Put(ctx, key, data)
			}
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNotFound
}

// Put writes to every layer and joins their errors.
func (l *Layered) Put(ctx context.Context, key string, data []byte) error {
	var errs []error
	for _, s := range l.layers {
		if err := s.Put(ctx, key, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every layer.
func (l *Layered) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, s := range l.layers {
		if err := s.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
