package service

import (
	"context"
	"errors"

	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/middleware"
	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var invalidArgument = []error{
	gallery.ErrMissingListing,
	ErrFileTooLarge,
	ErrTooManyFiles,
	ErrNotAnImage,
	ErrEmptyFile,
	ErrSizeMismatch,
	ErrMissingHeader,
}

// Code classifies an error for both transports.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return codes.InvalidArgument
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return codes.InvalidArgument
		}
	}

	switch {
	case errors.Is(err, middleware.ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, middleware.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, database.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return codes.Unavailable
	}
	return codes.Internal
}

// Message is the text shown to the caller. Upload and commit failures pass
// the store's message through unchanged.
func Message(err error) string {
	var uerr *gallery.UploadError
	if errors.As(err, &uerr) {
		return uerr.Err.Error()
	}
	switch Code(err) {
	case codes.Internal:
		return "internal error"
	case codes.NotFound:
		return "not found"
	}
	return err.Error()
}

// toStatus converts err into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), Message(err))
}
