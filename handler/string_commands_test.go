package handler

import "testing"

func TestSetGetHandlers(t *testing.T) {
	ctx, _ := newTestContext()

	if _, err := (&SetHandler{}).Execute(ctx, []string{"key", "value"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := (&GetHandler{}).Execute(ctx, []string{"key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "value" {
		t.Errorf("expected 'value', got %v", result)
	}
}

func TestSetWithPX(t *testing.T) {
	ctx, _ := newTestContext()

	if _, err := (&SetHandler{}).Execute(ctx, []string{"key", "value", "PX", "0"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := (&GetHandler{}).Execute(ctx, []string{"key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected key to have already expired, got %v", result)
	}
}

func TestSetWrongArity(t *testing.T) {
	ctx, _ := newTestContext()
	if _, err := (&SetHandler{}).Execute(ctx, []string{"key"}); err == nil {
		t.Error("expected an arity error")
	}
}

func TestSetBadSyntax(t *testing.T) {
	ctx, _ := newTestContext()
	if _, err := (&SetHandler{}).Execute(ctx, []string{"key", "value", "EX", "10"}); err == nil {
		t.Error("expected a syntax error for an unsupported option")
	}
}

func TestGetMissingKey(t *testing.T) {
	ctx, _ := newTestContext()
	result, err := (&GetHandler{}).Execute(ctx, []string{"missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestIncrHandler(t *testing.T) {
	ctx, _ := newTestContext()

	result, err := (&IncrHandler{}).Execute(ctx, []string{"counter"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(1) {
		t.Errorf("expected 1, got %v", result)
	}
}

func TestIncrHandlerNotInteger(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Store.Set("key", "abc", nil)

	if _, err := (&IncrHandler{}).Execute(ctx, []string{"key"}); err == nil {
		t.Error("expected an error for a non-integer value")
	}
}

func TestDelHandler(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Store.Set("a", "1", nil)
	ctx.Store.Set("b", "2", nil)

	result, err := (&DelHandler{}).Execute(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(2) {
		t.Errorf("expected 2, got %v", result)
	}
}

func TestExistsHandler(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Store.Set("a", "1", nil)

	result, err := (&ExistsHandler{}).Execute(ctx, []string{"a", "a", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(2) {
		t.Errorf("expected 2, got %v", result)
	}
}

func TestTypeHandler(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Store.Set("str", "v", nil)

	result, err := (&TypeHandler{}).Execute(ctx, []string{"str"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != SimpleString("string") {
		t.Errorf("expected SimpleString(string), got %v", result)
	}

	result, err = (&TypeHandler{}).Execute(ctx, []string{"missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != SimpleString("none") {
		t.Errorf("expected SimpleString(none), got %v", result)
	}
}
