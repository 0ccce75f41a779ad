package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `{
    "device": {
        "list": {
            "description": "List devices",
            "parameters": [
                {"param": "clientid", "required": false, "description": "Owner"}
            ],
            "output": {"type": "array"}
        }
    },
    "client": {
        "get": {
            "description": "Get a client",
            "label": "Client Get",
            "parameters": [
                {"param": "client_id", "required": true, "description": "Client ID"},
                {"param": "meta_*", "required": false, "description": "Custom fields"}
            ]
        },
        "add": {
            "description": "Add a client",
            "parameters": []
        }
    }
}
`

func TestDecode_PreservesOrderAndDropsOutput(t *testing.T) {
	t.Parallel()
	doc, err := Decode([]byte(sampleSchema), "sample.json")
	require.NoError(t, err)

	assert.Equal(t, []string{"device", "client"}, doc.SectionNames())
	client := doc.Section("client")
	require.NotNil(t, client)
	var names []string
	for _, m := range client.Methods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"get", "add"}, names)

	list := doc.Lookup("device", "list")
	require.NotNil(t, list)
	assert.Equal(t, "device.list", list.Dotted())
	_, hasOutput := list.Extra[outputField]
	assert.False(t, hasOutput, "output must be discarded")

	get := doc.Lookup("client", "get")
	require.NotNil(t, get)
	assert.Equal(t, "Client Get", get.Extra["label"])
	require.Len(t, get.Parameters, 2)
	assert.Equal(t, "client_id", get.Parameters[0].Name)
	assert.True(t, get.Parameters[0].IsRequired())
	assert.Equal(t, 3, doc.MethodCount())
}

func TestDecode_KeepsIncompleteParameters(t *testing.T) {
	t.Parallel()
	data := `{
    "client": {
        "get": {
            "description": "Get",
            "parameters": [
                {"param": "client_id", "required": true},
                {"param": "acctid"},
                {"required": false}
            ]
        }
    }
}`
	doc, err := Decode([]byte(data), "partial.json")
	require.NoError(t, err)

	m := doc.Lookup("client", "get")
	require.NotNil(t, m)
	require.Len(t, m.Parameters, 3)
	assert.Nil(t, m.Parameters[1].Required, "a missing flag stays absent")
	assert.Equal(t, "", m.Parameters[2].Name)

	err = ValidateParam(m.Parameters[1], 1)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 1, ve.Index)
	assert.Equal(t, "required", ve.Field)
	assert.Equal(t, "param", ValidateParam(m.Parameters[2], 2).(*ValidationError).Field)

	out, err := Encode(doc)
	require.NoError(t, err)
	again, err := Decode(out, "")
	require.NoError(t, err)
	assert.Nil(t, again.Lookup("client", "get").Parameters[1].Required)
}

func TestDecode_StructuralErrorsReportLine(t *testing.T) {
	t.Parallel()
	data := `{
    "client": {
        "get": {
            "description": "Get",
            "parameters": {"param": "client_id"}
        }
    }
}`
	_, err := Decode([]byte(data), "bad.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ValidationCode, le.Code)
	assert.Equal(t, 5, le.Line)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "client", ve.Section)
	assert.Equal(t, "get", ve.Method)
	assert.Equal(t, "parameters", ve.Field)
}

func TestDecode_SyntaxErrorLine(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("{\n  \"client\": {\n    \"get\": \"bad \\q escape\"\n  }\n}\n"), "broken.json")
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ParseError, le.Code)
	assert.Equal(t, 3, le.Line)
}

func TestDecode_EscapedSlashes(t *testing.T) {
	t.Parallel()
	data := `{"client": {"add": {"description": "Add\/update, see http:\/\/example.com",
        "parameters": [{"param": "url", "required": false, "description": "Callback http:\/\/"}]}}}`
	doc, err := Decode([]byte(data), "php.json")
	require.NoError(t, err)
	m := doc.Lookup("client", "add")
	require.NotNil(t, m)
	assert.Equal(t, "Add/update, see http://example.com", m.Description)
	assert.Equal(t, "Callback http://", m.Parameters[0].Description)
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()
	data := "client:\n  get:\n    description: Get\n    parameters:\n      - {param: client_id, required: true}\nbilling: {}\n"
	doc, err := Decode([]byte(data), "schema.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"client", "billing"}, doc.SectionNames())
	assert.True(t, doc.Lookup("client", "get").Parameters[0].IsRequired())

	flow, err := Decode([]byte(`{client: {get: {parameters: []}}}`), "flow.yaml")
	require.NoError(t, err)
	assert.NotNil(t, flow.Lookup("client", "get"))
}

func TestDecode_NameAliasAndLooseBooleans(t *testing.T) {
	t.Parallel()
	data := `{"uber": {"check": {"parameters": [
        {"name": "a", "required": 1},
        {"name": "b", "required": "0"}
    ]}}}`
	doc, err := Decode([]byte(data), "")
	require.NoError(t, err)
	m := doc.Lookup("uber", "check")
	require.Len(t, m.Parameters, 2)
	assert.Equal(t, "a", m.Parameters[0].Name)
	assert.True(t, m.Parameters[0].IsRequired())
	assert.False(t, m.Parameters[1].IsRequired())
}

func TestDecode_RejectsNonMappingRoot(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte(`["client.get"]`), "list.json")
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ParseError, le.Code)
}

func TestDecode_EmptySectionKept(t *testing.T) {
	t.Parallel()
	doc, err := Decode([]byte(`{"billing": {}, "client": null}`), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "client"}, doc.SectionNames())
	assert.Equal(t, 0, doc.MethodCount())
}

func TestEncode_StableRoundTrip(t *testing.T) {
	t.Parallel()
	doc, err := Decode([]byte(sampleSchema), "")
	require.NoError(t, err)

	first, err := Encode(doc)
	require.NoError(t, err)
	again, err := Decode(first, "")
	require.NoError(t, err)
	second, err := Encode(again)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.True(t, strings.HasSuffix(string(first), "}\n"))
	assert.Contains(t, string(first), "\n    \"device\": {\n        \"list\": {")
	assert.NotContains(t, string(first), "output")
	// device stays ahead of client: document order, not alphabetical
	assert.Less(t, strings.Index(string(first), `"device"`), strings.Index(string(first), `"client"`))
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	t.Parallel()
	doc := New()
	doc.Set("client", "update", &Method{Parameters: []ParamDescriptor{NewParam("custom<field>", false, "")}})
	out, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"custom<field>"`)
}

func TestSet_LastWriteWinsKeepsPosition(t *testing.T) {
	t.Parallel()
	doc := New()
	doc.Set("client", "get", &Method{Description: "first"})
	doc.Set("client", "list", &Method{Description: "list"})
	doc.Set("client", "get", &Method{Description: "second"})

	methods := doc.Section("client").Methods()
	require.Len(t, methods, 2)
	assert.Equal(t, "get", methods[0].Name)
	assert.Equal(t, "second", methods[0].Description)
	assert.Equal(t, "client", methods[0].Section())
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "4.5.0.json")

	doc := New()
	doc.Set("billing", "list", &Method{Description: "List", Parameters: []ParamDescriptor{
		NewParam("id", true, "ID"),
		NewParam("active", false, "Active only"),
	}})
	require.NoError(t, Save(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	m := loaded.Lookup("billing", "list")
	require.NotNil(t, m)
	assert.Equal(t, "List", m.Description)
	require.Len(t, m.Parameters, 2)
	assert.Equal(t, "active", m.Parameters[1].Name)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	again, err := Encode(loaded)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(again))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, InputError, le.Code)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDecodeMethod(t *testing.T) {
	t.Parallel()
	m, err := DecodeMethod([]byte(`{"name":"client.get","description":"Get","parameters":[{"param":"client_id","required":true}],"output":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "Get", m.Description)
	assert.Equal(t, "client.get", m.Extra["name"])
	_, hasOutput := m.Extra[outputField]
	assert.False(t, hasOutput)

	_, err = DecodeMethod([]byte(`{"parameters":[{"param":"a","required":true},{"param":"x"}]}`))
	assert.True(t, errors.Is(err, ErrValidation))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 1, ve.Index)
	assert.Equal(t, "required", ve.Field)

	_, err = DecodeMethod([]byte(`{"parameters":[{"required":true}]}`))
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "param", ve.Field)

	_, err = DecodeMethod([]byte("  "))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDecodeMethod_EscapedSlashes(t *testing.T) {
	t.Parallel()
	m, err := DecodeMethod([]byte(`{"description":"http:\/\/x","parameters":[{"param":"path","required":"1","description":"a\/b"}],"output":{"url":"http:\/\/y"}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://x", m.Description)
	assert.Equal(t, "a/b", m.Parameters[0].Description)
	assert.True(t, m.Parameters[0].IsRequired())
}
