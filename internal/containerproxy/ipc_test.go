package containerproxy

import "testing"

func TestMarkedResponseRoundTrip(t *testing.T) {
	resp := NewSuccessResponse("req-456", "Test output", nil)
	marked := resp.ToMarkedJSON()

	parsed, ok := ParseMarkedResponse(marked)
	if !ok {
		t.Fatal("expected a successful parse")
	}
	if parsed.RequestID != "req-456" {
		t.Fatalf("request id = %q, want req-456", parsed.RequestID)
	}
	if parsed.Result.Success == nil || parsed.Result.Success.Content != "Test output" {
		t.Fatalf("unexpected result: %+v", parsed.Result)
	}
}

func TestParseToleratesSurroundingNoise(t *testing.T) {
	resp := NewSuccessResponse("test", "OK", nil)
	marked := resp.ToMarkedJSON()
	noisy := "Log line 1\nLog line 2\n" + marked + "\nMore output"

	parsed, ok := ParseMarkedResponse(noisy)
	if !ok || parsed.RequestID != "test" {
		t.Fatalf("expected request id 'test', got %+v ok=%v", parsed, ok)
	}
}

// TestParseUsesLastStartMarker mirrors spec §8's round-trip law and
// end-to-end scenario 4 exactly: concatenating two framed responses
// must yield the second one's request_id.
func TestParseUsesLastStartMarker(t *testing.T) {
	first := NewSuccessResponse("first", "old", nil).ToMarkedJSON()
	second := NewSuccessResponse("second", "new", nil).ToMarkedJSON()
	payload := first + "\n" + second

	parsed, ok := ParseMarkedResponse(payload)
	if !ok || parsed.RequestID != "second" {
		t.Fatalf("expected last-start-marker rule to select 'second', got %+v ok=%v", parsed, ok)
	}
}

func TestParseMarkedResponseErrorResult(t *testing.T) {
	resp := NewErrorResponse("req-err", "Something went wrong", "ERR_001")
	marked := resp.ToMarkedJSON()

	parsed, ok := ParseMarkedResponse(marked)
	if !ok {
		t.Fatal("expected a successful parse")
	}
	if parsed.Result.Error == nil || parsed.Result.Error.Message != "Something went wrong" || parsed.Result.Error.Code != "ERR_001" {
		t.Fatalf("unexpected error result: %+v", parsed.Result)
	}
}

func TestParseMarkedResponseNoMarkerFails(t *testing.T) {
	if _, ok := ParseMarkedResponse("just some plain log output"); ok {
		t.Fatal("expected parse to fail when no marker is present")
	}
}

func TestParseMarkedResponseUnterminatedFrameFails(t *testing.T) {
	if _, ok := ParseMarkedResponse(ResponseStartMarker + "\n{\"request_id\":\"x\"}"); ok {
		t.Fatal("expected parse to fail when the end marker is missing")
	}
}
