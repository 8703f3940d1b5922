package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-lab/venusml/baseline"
	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/ensemble"
	"github.com/venus-lab/venusml/neighbors"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/train"
)

func TestNew(t *testing.T) {
	tree := ensemble.DefaultConfig()
	mlp := train.DefaultMLPConfig()

	tests := []struct {
		name string
		spec Spec
		want interface{}
	}{
		{"knn", Spec{Type: KNN, KNN: &neighbors.Config{NumNeighbors: 3}}, &neighbors.KNNRegressor{}},
		{"tree", Spec{Type: Tree, Tree: &tree}, &ensemble.GBRegressor{}},
		{"cheat", Spec{Type: Cheat}, &baseline.CheatRegressor{}},
		{"mlp", Spec{Type: MLP, MLP: &mlp}, &train.MLPRegressor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.spec)
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestNewCheatIsTargetAware(t *testing.T) {
	m, err := New(Spec{Type: Cheat})
	require.NoError(t, err)
	_, ok := m.(model.TargetAwarePredictor)
	assert.True(t, ok)
}

func TestNewErrors(t *testing.T) {
	_, err := New(Spec{Type: "svm"})
	var mt *errors.InvalidModelTypeError
	require.True(t, errors.As(err, &mt))
	assert.Equal(t, "svm", mt.Type)

	_, err = New(Spec{Type: KNN})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = New(Spec{Type: KNN, KNN: &neighbors.Config{}})
	assert.Error(t, err)

	_, err = ParseType("forest")
	assert.True(t, errors.As(err, &mt))
	typ, err := ParseType("tree")
	require.NoError(t, err)
	assert.Equal(t, Tree, typ)
}

func TestFactoryFreshInstances(t *testing.T) {
	f, err := Factory(Spec{Type: KNN, KNN: &neighbors.Config{NumNeighbors: 1}})
	require.NoError(t, err)
	a, err := f()
	require.NoError(t, err)
	b, err := f()
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	_, err = Factory(Spec{Type: Tree})
	assert.Error(t, err)
}
