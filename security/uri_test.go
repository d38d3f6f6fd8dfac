package security

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPath(t *testing.T) {
	tests := []struct {
		in, path, want string
	}{
		{"/about?lang=en", "/about.html", "/about.html?lang=en"},
		{"/about", "/about.html", "/about.html"},
		{"/x?", "/y", "/y?"},
		{"http://user@localhost:3030/a?b=1#frag", "/c d.html", "http://user@localhost:3030/c%20d.html?b=1#frag"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		require.NoError(t, err)
		nu, err := WithPath(u, tt.path)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, nu.String())
		// the input is left alone
		assert.Equal(t, tt.in, u.String())
	}
}

func TestWithPathInvalid(t *testing.T) {
	_, err := WithPath(nil, "/x")
	assert.True(t, errors.Is(err, ErrInvalidURI))

	_, err = WithPath(&url.URL{Path: "/a"}, "relative")
	assert.True(t, errors.Is(err, ErrInvalidURI))

	_, err = WithPath(&url.URL{Path: "/a", RawQuery: "q=\x7f"}, "/b")
	assert.True(t, errors.Is(err, ErrInvalidURI))
}
