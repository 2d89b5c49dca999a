package shared

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age"  validate:"gte=0"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"a","age":3}`},
		{name: "trailing comma", body: `{"name":"a",}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
		{name: "unknown field", body: `{"name":"a","extra":1}`, wantErr: true},
		{name: "two values", body: `{"name":"a"}{"name":"b"}`, wantErr: true},
		{name: "wrong type", body: `{"name":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var got sample
			err := DecodeJSON(req, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, sample{Name: "a", Age: 3}, got)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecodeJSONReadError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", failingReader{})
	var got sample
	assert.ErrorIs(t, DecodeJSON(req, &got), io.ErrUnexpectedEOF)
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&sample{Name: "a"}))
	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
	assert.Error(t, ValidateRequest(selfValidating{}))

	err := ValidateRequest(&sample{Age: -1})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := []string{verrs[0].Field(), verrs[1].Field()}
	assert.ElementsMatch(t, []string{"name", "age"}, fields, "fields are reported by json name")
}
