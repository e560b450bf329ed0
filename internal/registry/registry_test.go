package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
)

func provider(ctrl *gomock.Controller, name string, dim int) *embedding.MockProvider {
	p := embedding.NewMockProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	p.EXPECT().Dimension().Return(dim).AnyTimes()
	return p
}

func TestResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	def := provider(ctrl, "default-model", 4)
	other := provider(ctrl, "other-model", 8)

	r, err := New("default-model",
		Entry{Provider: def},
		Entry{Provider: other, Aliases: []string{"other"}},
	)
	require.NoError(t, err)

	tests := []struct {
		in       string
		wantName string
		want     embedding.Provider
	}{
		{"default-model", "default-model", def},
		{"other-model", "other-model", other},
		{"other", "other-model", other},
		{"", "default-model", def},
		{"nope", "default-model", def},
	}
	for _, tt := range tests {
		p, name := r.Resolve(tt.in)
		assert.Same(t, tt.want, p, tt.in)
		assert.Equal(t, tt.wantName, name, tt.in)
	}

	assert.True(t, r.HasModel("other"))
	assert.False(t, r.HasModel("nope"))
	assert.Equal(t, []string{"default-model", "other-model"}, r.ListAvailable())
	assert.Equal(t, []ModelInfo{
		{Name: "default-model", Dimension: 4, Default: true},
		{Name: "other-model", Dimension: 8},
	}, r.Describe())
}

func TestNewErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := provider(ctrl, "a", 1)

	_, err := New("missing", Entry{Provider: a})
	assert.ErrorIs(t, err, ErrNoDefault)

	_, err = New("a", Entry{Provider: a}, Entry{Provider: provider(ctrl, "b", 1), Aliases: []string{"a"}})
	assert.ErrorIs(t, err, ErrDuplicateModel)

	r, err := New("alias", Entry{Provider: a, Aliases: []string{"alias"}})
	require.NoError(t, err)
	assert.Equal(t, "a", r.Default())
}

func TestFromConfigs(t *testing.T) {
	r, err := FromConfigs("fallback", []embedding.Config{
		{Name: "primary", Kind: embedding.KindOpenAI, APIKey: "sk", Dimension: 1536},
		{Name: "local", Aliases: []string{"fallback"}, Kind: embedding.KindInference, Endpoint: "http://localhost:8080", Dimension: 384},
	})
	require.NoError(t, err)
	_, name := r.Resolve("")
	assert.Equal(t, "local", name)

	_, err = FromConfigs("x", []embedding.Config{{Name: "x", Kind: "grpc", Dimension: 1}})
	assert.ErrorIs(t, err, embedding.ErrUnknownKind)
}

func TestConcurrentResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	r, err := New("a", Entry{Provider: provider(ctrl, "a", 1)}, Entry{Provider: provider(ctrl, "b", 1)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a"
			if i%2 == 0 {
				name = "b"
			}
			_, got := r.Resolve(name)
			assert.Equal(t, name, got)
		}(i)
	}
	wg.Wait()
}
