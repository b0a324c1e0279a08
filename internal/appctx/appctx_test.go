package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestWithLogger_And_LoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	got, ok := LoggerFromContext(ctx)
	if !ok {
		t.Fatal("Expected LoggerFromContext to return true")
	}
	if got != logger {
		t.Error("Expected same logger instance")
	}
}

func TestLoggerFromContext_NilLogger(t *testing.T) {
	ctx := context.WithValue(context.Background(), loggerKey{}, (*slog.Logger)(nil))

	got, ok := LoggerFromContext(ctx)
	if ok {
		t.Error("Expected LoggerFromContext to return false for nil logger")
	}
	if got != nil {
		t.Error("Expected nil logger")
	}
}

func TestGetLogger_WithoutLogger(t *testing.T) {
	got := GetLogger(context.Background())
	if got != slog.Default() {
		t.Error("Expected GetLogger to return slog.Default() when no logger in context")
	}
}

func TestWithRequest_SharedInfo(t *testing.T) {
	userID := uint(7)
	ctx, info := WithRequest(context.Background(), "/api/registry/refresh/papers", &userID)

	// A lazily assigned id must be visible through the context.
	info.ID = "ABCD2345"

	got, ok := RequestFromContext(ctx)
	if !ok {
		t.Fatal("Expected request info in context")
	}
	if got.ID != "ABCD2345" {
		t.Errorf("expected id ABCD2345, got %q", got.ID)
	}
	if got.Path != "/api/registry/refresh/papers" {
		t.Errorf("unexpected path %q", got.Path)
	}
	if got.UserID == nil || *got.UserID != 7 {
		t.Errorf("expected user id 7, got %v", got.UserID)
	}
}

func TestRequestFromContext_Missing(t *testing.T) {
	if _, ok := RequestFromContext(context.Background()); ok {
		t.Error("Expected no request info in empty context")
	}
}
