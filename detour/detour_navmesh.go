package detour

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
)

// DtTileRef is a salted tile handle. A ref goes stale when its tile is
// removed; a stale ref never resolves again.
type DtTileRef uint64

const DT_SALT_BITS = 16

// DtNavMeshParams configures a tiled navmesh.
type DtNavMeshParams struct {
	Orig       common.Vec3
	TileWidth  float32
	TileHeight float32
	MaxTiles   int32
}

// DtMeshTile is one slot of the tile pool.
type DtMeshTile struct {
	salt  uint32
	index int
	Data  *DtTileData
	Blob  []byte
	next  *DtMeshTile
}

// Header is nil while the slot is free.
func (t *DtMeshTile) Header() *DtMeshHeader {
	if t.Data == nil {
		return nil
	}
	return &t.Data.Header
}

// DtNavMesh stores the baked tile layers. It is not goroutine-safe; wrap it
// in Shared for concurrent use.
type DtNavMesh struct {
	params      DtNavMeshParams
	tiles       []*DtMeshTile
	posLookup   []*DtMeshTile
	tileLutMask int32
	nextFree    *DtMeshTile
	tileBits    uint32
	tileCount   int
}

func NewDtNavMesh(params DtNavMeshParams) (*DtNavMesh, error) {
	mesh := &DtNavMesh{}
	if err := mesh.Init(params); err != nil {
		return nil, err
	}
	return mesh, nil
}

// Init discards every tile and re-creates the pool for params.
func (mesh *DtNavMesh) Init(params DtNavMeshParams) error {
	if params.MaxTiles <= 0 || params.TileWidth <= 0 || params.TileHeight <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidParam, params)
	}
	mesh.params = params
	lutSize := int32(common.NextPow2(uint32(params.MaxTiles) / 4))
	if lutSize == 0 {
		lutSize = 1
	}
	mesh.tileLutMask = lutSize - 1
	mesh.posLookup = make([]*DtMeshTile, lutSize)
	mesh.tiles = make([]*DtMeshTile, params.MaxTiles)
	mesh.nextFree = nil
	for i := params.MaxTiles - 1; i >= 0; i-- {
		mesh.tiles[i] = &DtMeshTile{salt: 1, index: int(i), next: mesh.nextFree}
		mesh.nextFree = mesh.tiles[i]
	}
	mesh.tileBits = max(common.Ilog2(common.NextPow2(uint32(params.MaxTiles))), 1)
	mesh.tileCount = 0
	return nil
}

func (mesh *DtNavMesh) Params() DtNavMeshParams { return mesh.params }
func (mesh *DtNavMesh) MaxTiles() int           { return len(mesh.tiles) }
func (mesh *DtNavMesh) TileCount() int          { return mesh.tileCount }
func (mesh *DtNavMesh) FreeTileCount() int      { return len(mesh.tiles) - mesh.tileCount }

func (mesh *DtNavMesh) encodeTileRef(salt uint32, index int) DtTileRef {
	return DtTileRef(salt)<<mesh.tileBits | DtTileRef(index)
}

func (mesh *DtNavMesh) decodeTileRef(ref DtTileRef) (salt uint32, index int) {
	tileMask := DtTileRef(1)<<mesh.tileBits - 1
	saltMask := DtTileRef(1)<<DT_SALT_BITS - 1
	return uint32((ref >> mesh.tileBits) & saltMask), int(ref & tileMask)
}

func (mesh *DtNavMesh) GetTileRef(tile *DtMeshTile) DtTileRef {
	if tile == nil {
		return 0
	}
	return mesh.encodeTileRef(tile.salt, tile.index)
}

// GetTileByRef resolves ref, returning nil for stale or invalid refs.
func (mesh *DtNavMesh) GetTileByRef(ref DtTileRef) *DtMeshTile {
	if ref == 0 {
		return nil
	}
	salt, index := mesh.decodeTileRef(ref)
	if index >= len(mesh.tiles) {
		return nil
	}
	tile := mesh.tiles[index]
	if tile.salt != salt || tile.Data == nil {
		return nil
	}
	return tile
}

// CalcTileLoc returns the tile containing pos.
func (mesh *DtNavMesh) CalcTileLoc(pos common.Vec3) (tx, ty int32) {
	tx = int32((pos[0] - mesh.params.Orig[0]) / mesh.params.TileWidth)
	ty = int32((pos[2] - mesh.params.Orig[2]) / mesh.params.TileHeight)
	return tx, ty
}

func (mesh *DtNavMesh) GetTileAt(x, y, layer int32) *DtMeshTile {
	if len(mesh.posLookup) == 0 {
		return nil
	}
	// Find tile based on hash.
	h := common.ComputeTileHash(x, y, mesh.tileLutMask)
	for tile := mesh.posLookup[h]; tile != nil; tile = tile.next {
		if hdr := tile.Header(); hdr != nil && hdr.X == x && hdr.Y == y && hdr.Layer == layer {
			return tile
		}
	}
	return nil
}

// GetTilesAt returns every layer stored at (x, y) ordered by layer.
func (mesh *DtNavMesh) GetTilesAt(x, y int32) []*DtMeshTile {
	var tiles []*DtMeshTile
	if len(mesh.posLookup) == 0 {
		return nil
	}
	h := common.ComputeTileHash(x, y, mesh.tileLutMask)
	for tile := mesh.posLookup[h]; tile != nil; tile = tile.next {
		if hdr := tile.Header(); hdr != nil && hdr.X == x && hdr.Y == y {
			tiles = append(tiles, tile)
		}
	}
	for i := 1; i < len(tiles); i++ {
		for j := i; j > 0 && tiles[j].Data.Header.Layer < tiles[j-1].Data.Header.Layer; j-- {
			tiles[j], tiles[j-1] = tiles[j-1], tiles[j]
		}
	}
	return tiles
}

// AddTile inserts a decoded tile. The slot (x, y, layer) must be free.
func (mesh *DtNavMesh) AddTile(data *DtTileData, blob []byte) (DtTileRef, DtStatus) {
	header := &data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return 0, DT_FAILURE | DT_WRONG_VERSION
	}
	// Make sure the location is free.
	if mesh.GetTileAt(header.X, header.Y, header.Layer) != nil {
		return 0, DT_FAILURE | DT_ALREADY_OCCUPIED
	}
	// Make sure we could allocate a tile.
	tile := mesh.nextFree
	if tile == nil {
		return 0, DT_FAILURE | DT_OUT_OF_MEMORY
	}
	mesh.nextFree = tile.next

	// Insert tile into the position lut.
	h := common.ComputeTileHash(header.X, header.Y, mesh.tileLutMask)
	tile.next = mesh.posLookup[h]
	mesh.posLookup[h] = tile
	tile.Data = data
	tile.Blob = blob
	mesh.tileCount++
	return mesh.GetTileRef(tile), DT_SUCCESS
}

// RemoveTile frees the slot of ref and returns the blob it held.
func (mesh *DtNavMesh) RemoveTile(ref DtTileRef) ([]byte, DtStatus) {
	tile := mesh.GetTileByRef(ref)
	if tile == nil {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	// Remove tile from hash lookup.
	hdr := tile.Header()
	h := common.ComputeTileHash(hdr.X, hdr.Y, mesh.tileLutMask)
	var prev *DtMeshTile
	for cur := mesh.posLookup[h]; cur != nil; prev, cur = cur, cur.next {
		if cur != tile {
			continue
		}
		if prev != nil {
			prev.next = cur.next
		} else {
			mesh.posLookup[h] = cur.next
		}
		break
	}
	blob := tile.Blob
	tile.Data, tile.Blob = nil, nil

	// Update salt, salt should never be zero.
	tile.salt = (tile.salt + 1) & (1<<DT_SALT_BITS - 1)
	if tile.salt == 0 {
		tile.salt++
	}
	// Add to free list.
	tile.next = mesh.nextFree
	mesh.nextFree = tile
	mesh.tileCount--
	return blob, DT_SUCCESS
}

// RemoveLayers removes every layer at (x, y) and returns their stale refs.
func (mesh *DtNavMesh) RemoveLayers(x, y int32) []DtTileRef {
	var refs []DtTileRef
	for _, tile := range mesh.GetTilesAt(x, y) {
		ref := mesh.GetTileRef(tile)
		if _, status := mesh.RemoveTile(ref); status.DtStatusSucceed() {
			refs = append(refs, ref)
		}
	}
	return refs
}

// InsertLayer decodes blob and stores it at (x, y, layer), replacing any
// layer already there. The blob's own coordinates must match. Running out
// of tile slots yields a *CapacityError.
func (mesh *DtNavMesh) InsertLayer(x, y, layer int32, blob []byte) (DtTileRef, error) {
	data, err := DecodeTileData(blob)
	if err != nil {
		return 0, err
	}
	if h := data.Header; h.X != x || h.Y != y || h.Layer != layer {
		return 0, fmt.Errorf("%w: blob is tile (%d,%d,%d), want (%d,%d,%d)",
			ErrInvalidParam, h.X, h.Y, h.Layer, x, y, layer)
	}
	if old := mesh.GetTileAt(x, y, layer); old != nil {
		mesh.RemoveTile(mesh.GetTileRef(old))
	}
	ref, status := mesh.AddTile(data, blob)
	if status.DtStatusDetail(DT_OUT_OF_MEMORY) {
		return 0, &CapacityError{MaxTiles: int32(len(mesh.tiles))}
	}
	if err := status.Err(); err != nil {
		return 0, err
	}
	return ref, nil
}

// LayerCount is the number of layers stored at (x, y).
func (mesh *DtNavMesh) LayerCount(x, y int32) int {
	return len(mesh.GetTilesAt(x, y))
}

// ForEachTile visits every stored tile in slot order.
func (mesh *DtNavMesh) ForEachTile(fn func(ref DtTileRef, tile *DtMeshTile)) {
	for i, tile := range mesh.tiles {
		if tile.Data != nil {
			fn(mesh.encodeTileRef(tile.salt, i), tile)
		}
	}
}
