package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/ferry/pkg/domain"
)

// buildRequest turns a visit into an HTTP request with protocol headers.
func (c *Client) buildRequest(ctx context.Context, req domain.VisitRequest, st PerformState) (*http.Request, error) {
	target, err := c.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
	)
	if req.Data != nil {
		if req.Method.DataInQuery() {
			q := target.Query()
			if err := encodeValues(q, "", req.Data); err != nil {
				return nil, fmt.Errorf("failed to encode query data: %w", err)
			}
			target.RawQuery = q.Encode()
		} else if req.ForceFormData || hasFiles(req.Data) {
			body, contentType, err = encodeMultipart(req.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to encode form data: %w", err)
			}
		} else {
			body, err = json.Marshal(req.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to encode visit data: %w", err)
			}
			contentType = contentTypeJSON
		}
	}
	// Fragments are never sent.
	target.Fragment = ""

	var reader io.Reader
	if body != nil {
		reader = newProgressReader(bytes.NewReader(body), int64(len(body)), true, st.OnProgress)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		httpReq.ContentLength = int64(len(body))
		httpReq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		httpReq.Header.Set("Content-Type", contentType)
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	h := httpReq.Header
	h.Set(HeaderMarker, markerValue)
	h.Set(HeaderRequestedWith, requestedWith)
	h.Set("Accept", acceptValue)
	if !st.Version.IsZero() {
		h.Set(HeaderVersion, st.Version.String())
	}
	if req.IsPartial() && st.Component != "" {
		h.Set(HeaderPartialComponent, st.Component)
		if len(req.Only) > 0 {
			h.Set(HeaderPartialData, strings.Join(req.Only, ","))
		}
		if len(req.Except) > 0 {
			h.Set(HeaderPartialExcept, strings.Join(req.Except, ","))
		}
	}
	if req.ErrorBag != "" {
		h.Set(HeaderErrorBag, req.ErrorBag)
	}
	return httpReq, nil
}

func (c *Client) resolve(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid visit url %q: %w", raw, err)
	}
	if c.base != nil {
		u = c.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("visit url %q is relative and no base url is configured", raw)
	}
	return u, nil
}

// encodeValues flattens data into bracketed form keys: a[b]=1, list[]=x.
func encodeValues(out url.Values, prefix string, data any) error {
	switch v := data.(type) {
	case nil:
		if prefix != "" {
			out.Add(prefix, "")
		}
		return nil
	case url.Values:
		for k, vs := range v {
			for _, s := range vs {
				out.Add(join(prefix, k), s)
			}
		}
		return nil
	case string:
		out.Add(prefix, v)
		return nil
	case bool:
		if v {
			out.Add(prefix, "1")
		} else {
			out.Add(prefix, "0")
		}
		return nil
	case json.Number:
		out.Add(prefix, v.String())
		return nil
	case fmt.Stringer:
		out.Add(prefix, v.String())
		return nil
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		for _, k := range rv.MapKeys() {
			ks := fmt.Sprint(k.Interface())
			keys = append(keys, ks)
			byKey[ks] = rv.MapIndex(k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeValues(out, join(prefix, k), byKey[k].Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValues(out, prefix+"[]", rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.Add(prefix, strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out.Add(prefix, strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		out.Add(prefix, strconv.FormatFloat(rv.Float(), 'f', -1, 64))
		return nil
	case reflect.Struct, reflect.Pointer:
		// Structs go through their JSON shape.
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		return encodeValues(out, prefix, generic)
	}
	return fmt.Errorf("cannot encode %T as form data", data)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "[" + key + "]"
}

// hasFiles reports whether a File appears anywhere in data.
func hasFiles(data any) bool {
	switch v := data.(type) {
	case *domain.File, domain.File:
		return true
	case map[string]any:
		for _, sub := range v {
			if hasFiles(sub) {
				return true
			}
		}
	case []any:
		for _, sub := range v {
			if hasFiles(sub) {
				return true
			}
		}
	}
	return false
}

func encodeMultipart(data any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeParts(w, "", data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeParts(w *multipart.Writer, prefix string, data any) error {
	switch v := data.(type) {
	case domain.File:
		return writeFile(w, prefix, &v)
	case *domain.File:
		return writeFile(w, prefix, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeParts(w, join(prefix, k), v[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, sub := range v {
			if err := writeParts(w, prefix+"[]", sub); err != nil {
				return err
			}
		}
		return nil
	}

	fields := url.Values{}
	if err := encodeValues(fields, prefix, data); err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, s := range fields[k] {
			if err := w.WriteField(k, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(w *multipart.Writer, field string, f *domain.File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(f.Filename)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if f.Content == nil {
		return nil
	}
	_, err = io.Copy(part, f.Content)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
