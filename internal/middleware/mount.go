package middleware

import (
	"context"
	"net/http"
	"strings"
)

type mountKey struct{}

// WithMountPath records the prefix the pantry routes are mounted under.
func WithMountPath(ctx context.Context, mount string) context.Context {
	return context.WithValue(ctx, mountKey{}, normalizeMount(mount))
}

// MountPath returns the mount prefix recorded in ctx, or "" at the root.
func MountPath(ctx context.Context) string {
	mount, _ := ctx.Value(mountKey{}).(string)
	return mount
}

// Mount records mount in the request context of every request.
func Mount(mount string) Middleware {
	mount = normalizeMount(mount)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), mountKey{}, mount)))
		})
	}
}

// StripMount returns p relative to mount, always starting with "/". ok is
// false when p lies outside mount.
func StripMount(p, mount string) (rel string, ok bool) {
	mount = normalizeMount(mount)
	if mount == "" {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return p, true
	}
	if p == mount {
		return "/", true
	}
	if !strings.HasPrefix(p, mount+"/") {
		return "", false
	}
	return p[len(mount):], true
}

// RelativePath returns the request path relative to the mount recorded in its
// context.
func RelativePath(r *http.Request) (string, bool) {
	return StripMount(r.URL.Path, MountPath(r.Context()))
}

// normalizeMount maps "/", "" and "/x/" to "", "" and "/x".
func normalizeMount(mount string) string {
	mount = strings.TrimRight(mount, "/")
	if mount != "" && !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}
	return mount
}
