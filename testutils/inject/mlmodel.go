// Package inject provides test doubles whose behavior is set per test through function fields.
package inject

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/semseg/ml"
	"go.viam.com/semseg/mlmodel"
)

// MLModelService is an injected ML model service.
type MLModelService struct {
	mlmodel.Service
	InferFunc    func(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error)
	MetadataFunc func(ctx context.Context) (mlmodel.MLMetadata, error)
	CloseFunc    func(ctx context.Context) error
}

// Infer calls the injected Infer or the real version.
func (s *MLModelService) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	if s.InferFunc == nil {
		if s.Service == nil {
			return nil, errors.New("no Infer function injected")
		}
		return s.Service.Infer(ctx, tensors)
	}
	return s.InferFunc(ctx, tensors)
}

// Metadata calls the injected Metadata or the real version.
func (s *MLModelService) Metadata(ctx context.Context) (mlmodel.MLMetadata, error) {
	if s.MetadataFunc == nil {
		if s.Service == nil {
			return mlmodel.MLMetadata{}, nil
		}
		return s.Service.Metadata(ctx)
	}
	return s.MetadataFunc(ctx)
}

// Close calls the injected Close or the real version.
func (s *MLModelService) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.Service == nil {
			return nil
		}
		return s.Service.Close(ctx)
	}
	return s.CloseFunc(ctx)
}
