// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package log

import (
	"context"
	"flag"
	"io"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"go.elastic.co/apm/module/apmzap/v2"
	"go.elastic.co/apm/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	klog "k8s.io/klog/v2"
	crlog "sigs.k8s.io/controller-runtime/pkg/log"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/elastic/edge-credentials/pkg/about"
	"github.com/elastic/edge-credentials/pkg/dev"
)

const (
	EcsVersion     = "1.6.0"
	EcsServiceType = "nuvlaedge-credentials"
	FlagName       = "log-verbosity"
)

var (
	verbosity = flag.Int(FlagName, 0, "Verbosity level of logs (-2=Error, -1=Warn, 0=Info, >0=Debug)")

	// Log is the root logger. It discards everything until InitLogger is called.
	Log = crlog.Log
)

// BindFlags attaches logging flags to the given flag set.
func BindFlags(flags *pflag.FlagSet) {
	flags.AddGoFlag(flag.Lookup(FlagName))
}

type logBuilder struct {
	tracer    *apm.Tracer
	verbosity *int
	out       io.Writer
}

// Option represents log configuration options.
type Option func(*logBuilder)

// WithVerbosity sets the log verbosity level.
// Verbosity levels from 2 are custom levels that increase the verbosity as the value increases.
// Standard levels are as follows:
// level | Zap level | name
// -------------------------
//
//	 1    | -1        | Debug
//	 0    |  0        | Info
//	-1    |  1        | Warn
//	-2    |  2        | Error
func WithVerbosity(verbosity int) Option {
	return func(lb *logBuilder) {
		lb.verbosity = &verbosity
	}
}

// WithTracer sets the tracer used by the logger to send logs to APM.
func WithTracer(tracer *apm.Tracer) Option {
	return func(lb *logBuilder) {
		lb.tracer = tracer
	}
}

// WithOutput redirects log output, stderr is used by default.
func WithOutput(out io.Writer) Option {
	return func(lb *logBuilder) {
		lb.out = out
	}
}

// InitLogger initializes the global logger.
func InitLogger(opts ...Option) {
	lb := &logBuilder{
		verbosity: verbosity,
		out:       os.Stderr,
	}

	for _, opt := range opts {
		opt(lb)
	}

	crlog.SetLogger(newLogger(lb))
}

func newLogger(lb *logBuilder) logr.Logger {
	zapLevel := determineLogLevel(lb.verbosity)

	// if the Zap custom level is less than debug (verbosity level 2 and above) set the klog level to the same level
	if zapLevel.Level() < zap.DebugLevel {
		flagset := flag.NewFlagSet("", flag.ContinueOnError)
		klog.InitFlags(flagset)
		_ = flagset.Set("v", strconv.Itoa(int(zapLevel.Level())*-1))
	}

	opts := []zap.Option{
		zap.Fields(
			zap.String("service.version", about.GetBuildInfo().VersionString()),
		),
	}

	// use instrumented core if tracing is enabled
	if lb.tracer != nil {
		opts = append(opts, zap.WrapCore((&apmzap.Core{Tracer: lb.tracer}).WrapCore))
	}

	var encoder zapcore.Encoder
	if dev.Enabled {
		encoderConf := zap.NewDevelopmentEncoderConfig()
		encoderConf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConf)
	} else {
		encoderConf := zap.NewProductionEncoderConfig()
		encoderConf.MessageKey = "message"
		encoderConf.TimeKey = "@timestamp"
		encoderConf.LevelKey = "log.level"
		encoderConf.NameKey = "log.logger"
		encoderConf.StacktraceKey = "error.stack_trace"
		encoderConf.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConf)
		opts = append(opts,
			zap.Fields(
				zap.String("service.type", EcsServiceType),
				zap.String("ecs.version", EcsVersion),
			))
	}

	stackTraceLevel := zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	return crzap.New(func(o *crzap.Options) {
		o.DestWriter = lb.out
		o.Development = dev.Enabled
		o.Level = &zapLevel
		o.StacktraceLevel = &stackTraceLevel
		o.Encoder = encoder
		o.ZapOpts = opts
	})
}

func determineLogLevel(v *int) zap.AtomicLevel {
	switch {
	case v != nil && *v > -3:
		return zap.NewAtomicLevelAt(zapcore.Level(*v * -1))
	case dev.Enabled:
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// FromContext returns the logger stored in ctx, or the root logger, enriched with the APM trace context if any.
func FromContext(ctx context.Context) logr.Logger {
	return crlog.FromContext(ctx).WithValues(traceContextKV(ctx)...)
}

// IntoContext returns a copy of ctx holding the given logger.
func IntoContext(ctx context.Context, log logr.Logger) context.Context {
	return crlog.IntoContext(ctx, log)
}

func traceContextKV(ctx context.Context) []interface{} {
	tx := apm.TransactionFromContext(ctx)
	if tx == nil {
		return nil
	}

	traceCtx := tx.TraceContext()
	fields := []interface{}{"trace.id", traceCtx.Trace, "transaction.id", traceCtx.Span}

	if span := apm.SpanFromContext(ctx); span != nil {
		fields = append(fields, "span.id", span.TraceContext().Span)
	}

	return fields
}
