package model

import "errors"

var (
	// ErrInsufficientData means a value cannot be produced from the data at hand.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrEmptyPool means no instrument is left to trade.
	ErrEmptyPool = errors.New("instrument pool is empty")
)
