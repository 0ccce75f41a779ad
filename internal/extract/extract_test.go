package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnassif/ubersmith-api/internal/schema"
	"github.com/bnassif/ubersmith-api/internal/ubersmith"
)

// fakeAPI serves canned responses keyed by dotted method name.
type fakeAPI struct {
	version   string
	methods   []string
	details   map[string]string
	failures  map[string]error
	infoErr   error
	listErr   error
	requested []string
	onGet     func(name string)
}

func (f *fakeAPI) SystemInfo(ctx context.Context) (*ubersmith.SystemInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &ubersmith.SystemInfo{Version: f.version}, nil
}

func (f *fakeAPI) MethodList(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.methods, nil
}

func (f *fakeAPI) MethodGet(ctx context.Context, name string) (json.RawMessage, error) {
	f.requested = append(f.requested, name)
	if f.onGet != nil {
		f.onGet(name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.failures[name]; ok {
		return nil, err
	}
	d, ok := f.details[name]
	if !ok {
		return nil, fmt.Errorf("no such method %s", name)
	}
	return json.RawMessage(d), nil
}

const paramsIDActive = `[{"param":"id","required":true,"description":"ID"},{"param":"active","required":false,"description":"Active"}]`

func billingAPI() *fakeAPI {
	return &fakeAPI{
		version: "4.5.2",
		methods: []string{"billing.list", "billing.archive", "billing.get"},
		details: map[string]string{
			"billing.list": `{"description":"List","parameters":` + paramsIDActive + `,"output":{"type":"array"}}`,
			"billing.get":  `{"description":"Get","parameters":` + paramsIDActive + `}`,
		},
		failures: map[string]error{
			"billing.archive": errors.New("connection reset"),
		},
	}
}

func TestExtract_SkipsFailedDetail(t *testing.T) {
	t.Parallel()
	api := billingAPI()
	res, err := Extract(context.Background(), api, Options{})
	require.NoError(t, err)

	assert.Equal(t, "4.5.2", res.Version)
	assert.Equal(t, 3, res.Methods)
	billing := res.Document.Section("billing")
	require.NotNil(t, billing)
	var names []string
	for _, m := range billing.Methods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"list", "get"}, names)
	assert.Nil(t, res.Document.Lookup("billing", "archive"))

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "billing.archive", res.Skipped[0].Method)
	var mde *MethodDetailError
	require.True(t, errors.As(res.Skipped[0].Err, &mde))
	assert.Equal(t, "billing.archive", mde.Method)

	list := res.Document.Lookup("billing", "list")
	_, hasOutput := list.Extra["output"]
	assert.False(t, hasOutput)
	assert.Equal(t, []string{"billing.list", "billing.archive", "billing.get"}, api.requested)
}

func TestExtract_InvalidDetailIsSoftFailure(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		version: "4.5.2",
		methods: []string{"client.get", "client.add"},
		details: map[string]string{
			"client.get": `{"parameters":[{"param":"client_id"}]}`,
			"client.add": `not json at all: [`,
		},
	}
	res, err := Extract(context.Background(), api, Options{})
	require.NoError(t, err)
	require.Len(t, res.Skipped, 2)
	assert.True(t, errors.Is(res.Skipped[0].Err, schema.ErrValidation))

	var ve *schema.ValidationError
	require.True(t, errors.As(res.Skipped[0].Err, &ve))
	assert.Equal(t, "client", ve.Section)
	assert.Equal(t, "get", ve.Method)

	assert.Equal(t, []string{"client"}, res.Document.SectionNames(), "section is kept even when empty")
	assert.Equal(t, 0, res.Document.MethodCount())
}

func TestExtract_FatalErrors(t *testing.T) {
	t.Parallel()
	connErr := &ubersmith.ConnectivityError{Op: ubersmith.MethodSystemInfo, Host: "example", Auth: true, Cause: errors.New("401")}

	_, err := Extract(context.Background(), &fakeAPI{infoErr: connErr}, Options{})
	assert.ErrorIs(t, err, connErr)

	_, err = Extract(context.Background(), &fakeAPI{version: "1", listErr: connErr}, Options{})
	var ce *ubersmith.ConnectivityError
	assert.True(t, errors.As(err, &ce))
}

func TestExtract_NoSeparatorSkipped(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		version: "4.5.2",
		methods: []string{"ping", "uber.check"},
		details: map[string]string{"uber.check": `{"description":"Check","parameters":[]}`},
	}
	res, err := Extract(context.Background(), api, Options{})
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, res.Skipped[0].Err, ErrNoSeparator)
	assert.NotNil(t, res.Document.Lookup("uber", "check"))
	assert.NotContains(t, api.requested, "ping")
}

func TestExtract_SplitsAtFirstDot(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		version: "4.5.2",
		methods: []string{"client.contact.list"},
		details: map[string]string{"client.contact.list": `{"parameters":[]}`},
	}
	res, err := Extract(context.Background(), api, Options{})
	require.NoError(t, err)
	assert.NotNil(t, res.Document.Lookup("client", "contact.list"))
}

func TestExtract_Progress(t *testing.T) {
	t.Parallel()
	type call struct {
		index, total int
		method       string
	}
	var calls []call
	_, err := Extract(context.Background(), billingAPI(), Options{
		Progress: func(i, n int, m string) { calls = append(calls, call{i, n, m}) },
	})
	require.NoError(t, err)
	assert.Equal(t, []call{
		{1, 3, "billing.list"},
		{2, 3, "billing.archive"},
		{3, 3, "billing.get"},
	}, calls)
}

func TestExtract_CancelAborts(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := billingAPI()
	api.onGet = func(name string) {
		if name == "billing.list" {
			cancel()
		}
	}
	res, err := Extract(ctx, api, Options{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"billing.list"}, api.requested)
}

func TestDefaultFilename(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "4.5.2.json", DefaultFilename("4.5.2"))
	assert.Equal(t, "4.5_beta.json", DefaultFilename("4.5/beta"))
	assert.Equal(t, "schema.json", DefaultFilename(" "))
}

func TestExtract_EscapedSlashesInDetail(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		version: "4.5.2",
		methods: []string{"client.add"},
		details: map[string]string{
			"client.add": `{"description":"Add\/update a client","parameters":[{"param":"url","required":false,"description":"http:\/\/example.com"}],"output":{"href":"\/api"}}`,
		},
	}
	res, err := Extract(context.Background(), api, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)

	m := res.Document.Lookup("client", "add")
	require.NotNil(t, m)
	assert.Equal(t, "Add/update a client", m.Description)
	assert.Equal(t, "http://example.com", m.Parameters[0].Description)
}
