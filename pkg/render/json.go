// Copyright 2026 the Trackeo Server authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
)

// RenderJSON renders the interface as JSON. The payload is encoded into a
// pooled buffer first so that an encoding failure never produces a partial
// response.
//
// If the provided data is nil and the response code is a 2xx, the result will
// be `{"ok":true}`. Otherwise nil data renders as `{"error":"<status text>"}`.
//
// A *multierror.Error renders as `{"errors":[...]}` and any other error value
// renders as `{"error":"<message>"}`.
func (r *Renderer) RenderJSON(w http.ResponseWriter, code int, data interface{}) {
	if data == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)

		if code >= 200 && code < 300 {
			fmt.Fprint(w, jsonOKResp)
			return
		}

		fmt.Fprintf(w, jsonErrTmpl, http.StatusText(code))
		return
	}

	var merr *multierror.Error
	if err, ok := data.(error); ok && errors.As(err, &merr) {
		errs := merr.WrappedErrors()
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		data = &multiError{Errors: msgs}
	}

	if typ, ok := data.(error); ok {
		data = &singleError{Error: typ.Error()}
	}

	b := r.pool.Get().(*bytes.Buffer)
	b.Reset()
	defer r.pool.Put(b)

	if err := json.NewEncoder(b).Encode(data); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, jsonErrTmpl, http.StatusText(http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = b.WriteTo(w)
}

// jsonErrTmpl is the template to use when returning a JSON error. It is
// rendered using Printf, not json.Encode, so values must be escaped by the
// caller.
const jsonErrTmpl = `{"error":"%s"}`

// jsonOKResp is the return value for empty data responses.
const jsonOKResp = `{"ok":true}`

type singleError struct {
	Error string `json:"error,omitempty"`
}

type multiError struct {
	Errors []string `json:"errors,omitempty"`
}
