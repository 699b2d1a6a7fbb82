package provider_test

import (
	"fmt"
	"net/http"
	"time"

	"github.com/adamwoolhether/pacer/provider"
)

func ExampleHook() {
	hook := provider.Hook()

	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"30"}},
	}

	fb := hook(resp, nil)
	fmt.Println(fb.Verdict, fb.RetryAfter)
	// Output: rate_limited 30s
}

func ExampleParseRetryAfter() {
	fmt.Println(provider.ParseRetryAfter("45", time.Now()))
	// Output: 45s
}
