package main

import (
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoWorld(t *testing.T) {
	bounds := common.NewBox(common.Vec3{0, -10, 0}, common.Vec3{64, 20, 64})
	w := newDemoWorld(bounds, 7, 3)

	q := w.Query(bounds)
	require.True(t, q.HasGeometry())
	assert.Len(t, q.Modifiers, 3)
	assert.Len(t, q.OffMeshLinks, 1)
	for _, m := range q.Modifiers {
		assert.True(t, m.Dynamic)
	}

	before := append([]common.Vec3(nil), w.placing...)
	areas := w.step()
	require.Len(t, areas, 3)
	for i, a := range areas {
		assert.Equal(t, geom.DirtyModifier, a.Kind)
		assert.True(t, a.Box.Contains2D(before[i]))
		assert.True(t, a.Box.Contains2D(w.placing[i]))
		assert.True(t, bounds.Contains2D(w.placing[i]))
	}
}

func TestDemoWorldIsDeterministic(t *testing.T) {
	bounds := common.NewBox(common.Vec3{0, -10, 0}, common.Vec3{64, 20, 64})
	a, b := newDemoWorld(bounds, 3, 2), newDemoWorld(bounds, 3, 2)
	assert.Equal(t, a.placing, b.placing)
	a.step()
	b.step()
	assert.Equal(t, a.placing, b.placing)
}
