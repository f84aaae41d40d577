package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/auth"
)

func TestAuthorizeHeader(t *testing.T) {
	authn := auth.NewAuthenticator([]byte("secret"))
	manager, err := authn.Sign("m-1", auth.RoleManager, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	sale, err := authn.Sign("s-1", auth.RoleSale, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		cap    auth.Capability
		want   error
		status int
	}{
		{"missing", "", auth.PolicyRead, charter.ErrUnauthenticated, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", auth.PolicyRead, charter.ErrUnauthenticated, http.StatusUnauthorized},
		{"garbage", "Bearer abc", auth.PolicyRead, charter.ErrUnauthenticated, http.StatusUnauthorized},
		{"lacking capability", "Bearer " + sale, auth.PolicyWrite, charter.ErrForbidden, http.StatusForbidden},
		{"manager delete", "Bearer " + manager, auth.PolicyDelete, charter.ErrForbidden, http.StatusForbidden},
		{"manager write", "Bearer " + manager, auth.PolicyWrite, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := AuthorizeHeader(tt.header, authn, tt.cap)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.Subject != "m-1" {
					t.Fatalf("subject = %q, want m-1", p.Subject)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := Status(err); got != tt.status {
				t.Fatalf("Status = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestAuthorizeHeader_NoAuthenticator(t *testing.T) {
	if _, err := AuthorizeHeader("Bearer x", nil, auth.PolicyRead); !errors.Is(err, charter.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestRequire(t *testing.T) {
	authn := auth.NewAuthenticator([]byte("secret"))
	manager, err := authn.Sign("m-1", auth.RoleManager, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	router := forge.NewRouter()
	err = router.POST("/gated", func(ctx forge.Context) error {
		p, ok := PrincipalFrom(ctx.Context())
		if !ok {
			return ctx.JSON(http.StatusInternalServerError, map[string]any{"message": "no principal"})
		}
		return ctx.JSON(http.StatusOK, map[string]any{
			"subject": p.Subject,
			"actor":   charter.ActorFromContext(ctx.Context()),
		})
	}, forge.WithMiddleware(Require(authn, auth.PolicyWrite)))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router.Handler())
	defer srv.Close()

	call := func(token string) (int, map[string]any) {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/gated", strings.NewReader("{"))
		if err != nil {
			t.Fatal(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, body
	}

	status, body := call("")
	if status != http.StatusUnauthorized || body["statusCode"] != float64(http.StatusUnauthorized) {
		t.Fatalf("anonymous: status = %d, body = %v", status, body)
	}

	status, body = call(manager)
	if status != http.StatusOK || body["subject"] != "m-1" || body["actor"] != "m-1" {
		t.Fatalf("manager: status = %d, body = %v", status, body)
	}
}
