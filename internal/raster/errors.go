package raster

import "errors"

var (
	// ErrInputNotFound is returned when an input path does not exist.
	ErrInputNotFound = errors.New("input not found")
	// ErrShapeMismatch is returned when rasters, masks or features disagree in shape.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrChannelCountMismatch is returned when the classifier expects a different number of channels.
	ErrChannelCountMismatch = errors.New("channel count mismatch")
	// ErrEmptyDataset is returned when no scenes or tiles were produced.
	ErrEmptyDataset = errors.New("empty dataset")
)
