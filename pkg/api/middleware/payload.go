/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// methodToolsCall is the generic invoke-tool envelope whose params.name
// carries the real operation
const methodToolsCall = "tools/call"

// toolPayload is a decoded JSON-RPC tool request. Shapes seen on the wire:
//
//	{"method":"GetTableMetadata","params":{"connectionName":"sales"}}
//	{"method":"tools/call","params":{"name":"ExecuteQuery","arguments":{"connectionName":"sales"},"_meta":{"apiKey":"..."}}}
type toolPayload map[string]any

// parseToolPayload decodes body. It returns nil when body is not a JSON object
// or when any object in it repeats a key, compared case-insensitively.
func parseToolPayload(body []byte) toolPayload {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var p toolPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil
	}
	if err := checkUniqueKeys(json.NewDecoder(bytes.NewReader(body))); err != nil {
		return nil
	}
	return p
}

// checkUniqueKeys walks one JSON value from dec and fails on the first object
// that carries the same key twice, compared case-insensitively
func checkUniqueKeys(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch delim {
	case '{':
		seen := make(map[string]struct{})
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key := strings.ToLower(fmt.Sprint(keyTok))
			if _, dup := seen[key]; dup {
				return fmt.Errorf("duplicate key %q", keyTok)
			}
			seen[key] = struct{}{}
			if err := checkUniqueKeys(dec); err != nil {
				return err
			}
		}
	case '[':
		for dec.More() {
			if err := checkUniqueKeys(dec); err != nil {
				return err
			}
		}
	}
	// closing delimiter
	_, err = dec.Token()
	return err
}

// lookup walks a dot separated path through nested objects
func (p toolPayload) lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func (p toolPayload) lookupString(path string) string {
	v, ok := p.lookup(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// operationName is the method, or params.name for a tools/call envelope
func (p toolPayload) operationName() string {
	method := p.lookupString("method")
	if method == methodToolsCall {
		return p.lookupString("params.name")
	}
	return method
}

// resourceNames collects every value of param under params.arguments and
// directly under params, in that order. Keys match case-insensitively and
// empty strings count as absent. ok is false when a value is present but is
// not a string.
func (p toolPayload) resourceNames(param string) (names []string, ok bool) {
	for _, path := range []string{"params.arguments", "params"} {
		v, found := p.lookup(path)
		if !found {
			continue
		}
		obj, isObj := v.(map[string]any)
		if !isObj {
			continue
		}
		for key, raw := range obj {
			if !strings.EqualFold(key, param) {
				continue
			}
			s, isStr := raw.(string)
			if !isStr {
				return nil, false
			}
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
	}
	return names, true
}

// replayBody yields the buffered prefix and then whatever is left of the
// original body
type replayBody struct {
	io.Reader
	io.Closer
}

// bufferBody reads up to limit bytes of the request body and puts it back so
// the next reader sees the full original stream. complete is false when the
// body was larger than limit or the read failed.
func bufferBody(r *http.Request, limit int64) (body []byte, complete bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, true
	}

	orig := r.Body
	buf, err := io.ReadAll(io.LimitReader(orig, limit+1))
	r.Body = &replayBody{
		Reader: io.MultiReader(bytes.NewReader(buf), orig),
		Closer: orig,
	}
	if err != nil || int64(len(buf)) > limit {
		return nil, false
	}
	return buf, true
}
