//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
)

var errLinuxOnly = errors.New("sampler source is only available on Linux")

type unsupportedSampler struct{}

func (unsupportedSampler) Run(context.Context, Sink) error { return errLinuxOnly }

func newEvdevSampler(EvdevConfig, *slog.Logger) Sampler { return unsupportedSampler{} }

func newCdevSampler(GPIOCdevConfig, *slog.Logger) Sampler { return unsupportedSampler{} }
