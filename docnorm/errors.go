package docnorm

import "errors"

// ErrInvalidEncoding is returned when the request payload is not valid base64.
var ErrInvalidEncoding = errors.New("docnorm: invalid base64 content")

// ErrPayloadTooLarge is returned when the decoded payload exceeds the size ceiling.
var ErrPayloadTooLarge = errors.New("docnorm: payload too large")

// ErrUnsupportedFormat is returned when the filename extension is not recognized.
var ErrUnsupportedFormat = errors.New("docnorm: unsupported format")

// ErrBackendUnavailable is returned when a binary format needs the conversion
// backend and none is configured.
var ErrBackendUnavailable = errors.New("docnorm: conversion backend unavailable")
