// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package safejson_test

import (
	"encoding/json"
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/statekit/pkg/safejson"
)

var _ = Describe("SafeJson (Unmarshal)", func() {
	It("decodes a json string", func() {
		jsonString := `{"key": "value"}`
		result := make(map[string]interface{})
		err := safejson.Unmarshal([]byte(jsonString), &result)
		Expect(err).To(BeNil())
		Expect(result["key"]).To(Equal("value"))
	})

	It("should not work with nil ptr receiver", func() {
		jsonString := `{"key": "value"}`
		var result map[string]interface{}
		err := safejson.Unmarshal([]byte(jsonString), result)
		Expect(err).ToNot(BeNil())
		Expect(result).To(BeNil())
	})

	It("decodes into a struct", func() {
		type item struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Stars int    `json:"stars"`
		}

		jsonString := `{"id": "n1", "title": "hello", "stars": 3}`

		var result item
		err := safejson.Unmarshal([]byte(jsonString), &result)
		Expect(err).To(BeNil())
		Expect(result.ID).To(Equal("n1"))
		Expect(result.Title).To(Equal("hello"))
		Expect(result.Stars).To(Equal(3))
	})

	It("decodes a complex json structure", func() {
		jsonString := `{"key1": "value1", "key2": {"nestedKey": "nestedValue"}}`
		result := make(map[string]interface{})
		err := safejson.Unmarshal([]byte(jsonString), &result)
		Expect(err).To(BeNil())
		Expect(result["key1"]).To(Equal("value1"))
		nestedMap := result["key2"].(map[string]interface{})
		Expect(nestedMap["nestedKey"]).To(Equal("nestedValue"))
	})

	It("handles invalid json gracefully", func() {
		jsonString := `{"key": "value"`
		result := make(map[string]interface{})
		err := safejson.Unmarshal([]byte(jsonString), &result)
		Expect(err).ToNot(BeNil())
	})

	It("handles empty json object", func() {
		jsonString := `{}`
		result := make(map[string]interface{})
		err := safejson.Unmarshal([]byte(jsonString), &result)
		Expect(err).To(BeNil())
		Expect(result).To(BeEmpty())
	})

	It("handles json array", func() {
		jsonString := `["value1", "value2"]`
		var result []interface{}
		err := safejson.Unmarshal([]byte(jsonString), &result)
		Expect(err).To(BeNil())
		Expect(result).To(HaveLen(2))
		Expect(result[0]).To(Equal("value1"))
		Expect(result[1]).To(Equal("value2"))
	})
})

type OuterJsonStruct struct {
	Inner    *InnerJsonStruct `json:"inner"`
	OtherKey *string          `json:"other_key,omitempty"`
}

type InnerJsonStruct struct {
	Key *string `json:"key"`
}

var _ = Describe("SafeJson (Marshal)", func() {
	It("encodes a json string", func() {
		jsonMap := map[string]interface{}{"key": "value"}
		result, err := safejson.Marshal(jsonMap)
		Expect(err).To(BeNil())
		Expect(string(result)).To(Equal(`{"key":"value"}`))
	})

	It("should work when we encode a nil map", func() {
		var jsonMap map[string]interface{}
		result, err := safejson.Marshal(jsonMap)
		Expect(err).To(BeNil())
		Expect(string(result)).To(Equal(`null`))
	})

	It("should work when we have a nil value in a nested structure", func() {
		var jsonStruct OuterJsonStruct
		jsonStruct.Inner = nil
		result, err := safejson.Marshal(jsonStruct)
		Expect(err).To(BeNil())
		Expect(string(result)).To(Equal(`{"inner":null}`))
	})

	It("encodes a nested json structure", func() {
		jsonMap := map[string]interface{}{
			"key1": "value1",
			"key2": map[string]interface{}{
				"nestedKey": "nestedValue",
			},
		}
		result, err := safejson.Marshal(jsonMap)
		Expect(err).To(BeNil())
		Expect(string(result)).To(MatchJSON(`{"key1":"value1","key2":{"nestedKey":"nestedValue"}}`))
	})

	It("handles empty map", func() {
		jsonMap := map[string]interface{}{}
		result, err := safejson.Marshal(jsonMap)
		Expect(err).To(BeNil())
		Expect(string(result)).To(Equal(`{}`))
	})

	It("handles nil slice", func() {
		var jsonSlice []interface{}
		result, err := safejson.Marshal(jsonSlice)
		Expect(err).To(BeNil())
		Expect(string(result)).To(Equal(`null`))
	})

	It("handles slice with nil elements", func() {
		jsonSlice := []interface{}{"value1", nil, "value3"}
		result, err := safejson.Marshal(jsonSlice)
		Expect(err).To(BeNil())
		Expect(string(result)).To(MatchJSON(`["value1",null,"value3"]`))
	})

	It("round-trips through MarshalIndent", func() {
		jsonMap := map[string]interface{}{"key": "value"}
		encoded, err := safejson.MarshalIndent(jsonMap, "", "  ")
		Expect(err).To(BeNil())

		decoded := make(map[string]interface{})
		Expect(safejson.Unmarshal(encoded, &decoded)).To(Succeed())
		Expect(decoded).To(Equal(jsonMap))
	})
})

var _ = Describe("SafeJson (stdlib parity)", func() {
	It("should match the results of safejson.Unmarshal and json.Unmarshal", func() {
		var jsonInputs = []string{
			`{"key1": "value1", "key2": "value2"}`,
			`{"nested": {"inner_key": "inner_value"}}`,
			`{"list": [1, 2, 3, 4, 5]}`,
			`{"bool": true, "null_value": null}`,
			`{"int_value": 123, "float_value": 456.789}`,
			`{"complex_structure": {"list_of_dicts": [{"a": 1}, {"b": 2}]}}`,
			`{"empty_list": [], "empty_dict": {}}`,
			`{"unicode_string": "こんにちは世界", "escaped_chars": "\\t\\n\\""}`,
			`{"mixed_types": [1, "two", 3.0, {"four": 4}]}`,
			`{}`,
			`{"negative_numbers": -123, "positive_numbers": 456}`,
			`{"special_characters": "!@#$%^&*()_+-="}`,
			`{"nested_empty": {"a": {"b": {}}}}`,
			`{"complex_numbers": [1e-09, -2.5, 3.1415]}`,
			`{"json_with_null": {"key": null}}`,
			`{"timestamp_ms":1724678619210,"\"\"\"PID401P01\"\"_OUT_StellwertAktuell\"":0.0922309011220932}`,
			`{"timestamp_ms":1724678619210,"\"\"\"PID401P01\"\"_OUT_StellwertAktuell\"":0,0922309011220932}`,
		}

		for _, input := range jsonInputs {
			target := new(map[string]interface{})

			safeTarget := reflect.New(reflect.TypeOf(target).Elem()).Interface()
			err := safejson.Unmarshal([]byte(input), safeTarget)
			GinkgoT().Logf("SafeJSON Unmarshal Error: %v", err)

			stdlibTarget := reflect.New(reflect.TypeOf(target).Elem()).Interface()
			stdlibErr := json.Unmarshal([]byte(input), stdlibTarget)
			GinkgoT().Logf("Standard JSON Unmarshal Error: %v", stdlibErr)

			if stdlibErr == nil {
				Expect(safeTarget).To(Equal(stdlibTarget), "Mismatch between safejson.Unmarshal and json.Unmarshal results.")
			}
		}
	})
})
