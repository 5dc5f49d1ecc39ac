/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

// Package middleware provides http.Handler wrappers shared by every instance of a server.
package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// NewCompressionHandler wraps a http.Handler with response compression negotiated from the request's Accept-Encoding
// header. Brotli is preferred over gzip; requests accepting neither, and protocol upgrade requests, pass through
// untouched.
func NewCompressionHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		encoding := selectEncoding(request.Header.Get("Accept-Encoding"))

		if encoding == "" || request.Header.Get("Upgrade") != "" {
			handler.ServeHTTP(writer, request)
			return
		}

		compressingWriter := &compressResponseWriter{
			ResponseWriter: writer,
			encoding:       encoding,
		}
		defer func() { _ = compressingWriter.Close() }()

		handler.ServeHTTP(compressingWriter, request)
	})
}

func selectEncoding(acceptEncoding string) string {
	if encodingAccepted(acceptEncoding, encodingBrotli) {
		return encodingBrotli
	}

	if encodingAccepted(acceptEncoding, encodingGzip) {
		return encodingGzip
	}

	return ""
}

func encodingAccepted(acceptEncoding string, encoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")

		if name != encoding {
			continue
		}

		//q=0 means explicitly refused
		if qVal, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if q, err := strconv.ParseFloat(strings.TrimSpace(qVal), 64); err == nil && q == 0 {
				return false
			}
		}

		return true
	}

	return false
}

// compressResponseWriter defers compressor construction until the first body write so that handlers that set their
// own Content-Encoding, or write no body at all, are left alone.
type compressResponseWriter struct {
	http.ResponseWriter
	encoding    string
	compressor  io.WriteCloser
	wroteHeader bool
	passThrough bool
}

func (w *compressResponseWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true

		if w.Header().Get("Content-Encoding") != "" || statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
			w.passThrough = true
		} else {
			w.Header().Set("Content-Encoding", w.encoding)
			w.Header().Add("Vary", "Accept-Encoding")
			w.Header().Del("Content-Length")
		}
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *compressResponseWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	if w.passThrough {
		return w.ResponseWriter.Write(data)
	}

	if w.compressor == nil {
		if w.encoding == encodingBrotli {
			w.compressor = brotli.NewWriter(w.ResponseWriter)
		} else {
			w.compressor = gzip.NewWriter(w.ResponseWriter)
		}
	}

	return w.compressor.Write(data)
}

// Flush flushes any buffered compressed output through to the client.
func (w *compressResponseWriter) Flush() {
	if flusher, ok := w.compressor.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}

	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *compressResponseWriter) Close() error {
	if w.compressor == nil {
		return nil
	}

	return w.compressor.Close()
}
