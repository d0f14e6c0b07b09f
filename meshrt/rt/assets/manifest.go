package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/scenert/meshrt/rt/core"
	"github.com/gekko3d/scenert/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML scene description read by ManifestImporter. Cross
// references are indices into the sibling lists; a missing pointer means none.
type Manifest struct {
	Name      string             `yaml:"name"`
	Samplers  []ManifestSampler  `yaml:"samplers"`
	Textures  []ManifestTexture  `yaml:"textures"`
	Materials []ManifestMaterial `yaml:"materials"`
	Meshes    []ManifestMesh     `yaml:"meshes"`
	Lights    []ManifestLight    `yaml:"lights"`
	Nodes     []ManifestNode     `yaml:"nodes"`
}

type ManifestSampler struct {
	Mag string `yaml:"mag"`
	Min string `yaml:"min"`
}

type ManifestTexture struct {
	Path string `yaml:"path"`
}

type ManifestMaterial struct {
	Name       string     `yaml:"name"`
	BaseColor  [4]float32 `yaml:"base_color"`
	Metalness  float32    `yaml:"metalness"`
	Roughness  float32    `yaml:"roughness"`
	Emissive   float32    `yaml:"emissive"`
	Texture    *int       `yaml:"base_color_texture"`
	MetalRough *int       `yaml:"metal_rough_texture"`
	Normal     *int       `yaml:"normal_texture"`
	Occlusion  *int       `yaml:"occlusion_texture"`
	EmissiveTx *int       `yaml:"emissive_texture"`
}

type ManifestSurface struct {
	Primitive string     `yaml:"primitive"`
	Size      float32    `yaml:"size"`
	Height    float32    `yaml:"height"`
	Color     [4]float32 `yaml:"color"`
	Material  int        `yaml:"material"`
}

type ManifestMesh struct {
	Name     string            `yaml:"name"`
	Surfaces []ManifestSurface `yaml:"surfaces"`
}

type ManifestLight struct {
	Type      string     `yaml:"type"`
	Position  [3]float32 `yaml:"position"`
	Color     [3]float32 `yaml:"color"`
	Intensity float32    `yaml:"intensity"`
	Range     float32    `yaml:"range"`
	Inner     float32    `yaml:"inner"`
	Outer     float32    `yaml:"outer"`
}

type ManifestNode struct {
	Name        string      `yaml:"name"`
	Parent      *int        `yaml:"parent"`
	Mesh        *int        `yaml:"mesh"`
	Light       *int        `yaml:"light"`
	Translation [3]float32  `yaml:"translation"`
	Rotation    [3]float32  `yaml:"rotation"`
	Scale       *[3]float32 `yaml:"scale"`
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// ManifestImporter builds a batch from a manifest file, procedural primitives and
// texture files resolved relative to the manifest.
type ManifestImporter struct {
	Path    string
	Decoder *TextureDecoder
}

func (imp *ManifestImporter) Import(ctx context.Context) (*Batch, error) {
	data, err := os.ReadFile(imp.Path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(imp.Path), filepath.Ext(imp.Path))
	}

	b, err := m.Batch()
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(m.Textures))
	for i, t := range m.Textures {
		paths[i] = t.Path
		if !filepath.IsAbs(t.Path) {
			paths[i] = filepath.Join(filepath.Dir(imp.Path), t.Path)
		}
	}
	if len(paths) > 0 {
		if b.Textures, err = imp.decode(ctx, paths); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (imp *ManifestImporter) decode(ctx context.Context, paths []string) ([]TextureData, error) {
	if imp.Decoder != nil {
		return imp.Decoder.DecodeFiles(ctx, paths)
	}
	out := make([]TextureData, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tex, err := decodeFile(p, true)
		if err != nil {
			return nil, err
		}
		out = append(out, tex)
	}
	return out, nil
}

var sourceFilters = map[string]gpu.SourceFilter{
	"":                       0,
	"nearest":                gpu.SourceNearest,
	"linear":                 gpu.SourceLinear,
	"nearest_mipmap_nearest": gpu.SourceNearestMipMapNearest,
	"linear_mipmap_nearest":  gpu.SourceLinearMipMapNearest,
	"nearest_mipmap_linear":  gpu.SourceNearestMipMapLinear,
	"linear_mipmap_linear":   gpu.SourceLinearMipMapLinear,
}

var lightTypes = map[string]core.LightType{
	"":            core.LightPoint,
	"point":       core.LightPoint,
	"directional": core.LightDirectional,
	"spot":        core.LightSpot,
}

func ref(p *int) int {
	if p == nil {
		return None
	}
	return *p
}

// Batch converts the manifest to a batch without textures; Textures stays empty
// and is filled by the importer after decoding.
func (m *Manifest) Batch() (*Batch, error) {
	b := &Batch{Name: m.Name}
	var errs []error

	for i, s := range m.Samplers {
		mag, ok1 := sourceFilters[s.Mag]
		minf, ok2 := sourceFilters[s.Min]
		if !ok1 || !ok2 {
			errs = append(errs, fmt.Errorf("sampler %d: unknown filter %q/%q", i, s.Mag, s.Min))
			continue
		}
		b.Samplers = append(b.Samplers, gpu.SamplerFromSource(fmt.Sprintf("%s/sampler%d", m.Name, i), mag, minf))
	}

	for _, mm := range m.Materials {
		name := mm.Name
		if name == "" {
			name = fmt.Sprintf("material-%s", uuid.NewString()[:8])
		}
		roughness := mm.Roughness
		if roughness == 0 {
			roughness = 1
		}
		color := mgl32.Vec4(mm.BaseColor)
		if color == (mgl32.Vec4{}) {
			color = mgl32.Vec4{1, 1, 1, 1}
		}
		b.Materials = append(b.Materials, MaterialData{
			Name:             name,
			BaseColorFactor:  color,
			MetalnessFactor:  mm.Metalness,
			RoughnessFactor:  roughness,
			EmissiveStrength: mm.Emissive,
			BaseColor:        ref(mm.Texture),
			MetalRough:       ref(mm.MetalRough),
			Normal:           ref(mm.Normal),
			Occlusion:        ref(mm.Occlusion),
			Emissive:         ref(mm.EmissiveTx),
		})
	}

	for i, mm := range m.Meshes {
		mesh := MeshData{Name: mm.Name}
		for j, s := range mm.Surfaces {
			color := mgl32.Vec4(s.Color)
			if color == (mgl32.Vec4{}) {
				color = mgl32.Vec4{1, 1, 1, 1}
			}
			g, err := Primitive(s.Primitive, s.Size, s.Height, color)
			if err != nil {
				errs = append(errs, fmt.Errorf("mesh %d surface %d: %w", i, j, err))
				continue
			}
			first, count := b.Append(g)
			mesh.Surfaces = append(mesh.Surfaces, SurfaceData{
				FirstIndex: first,
				IndexCount: count,
				Bounds:     g.Bounds(),
				Material:   s.Material,
			})
		}
		b.Meshes = append(b.Meshes, mesh)
	}

	for i, ml := range m.Lights {
		typ, ok := lightTypes[ml.Type]
		if !ok {
			errs = append(errs, fmt.Errorf("light %d: unknown type %q", i, ml.Type))
			continue
		}
		b.Lights = append(b.Lights, core.Light{
			Type:       typ,
			Position:   mgl32.Vec3(ml.Position),
			Color:      mgl32.Vec3(ml.Color),
			Intensity:  ml.Intensity,
			Range:      ml.Range,
			InnerAngle: ml.Inner,
			OuterAngle: ml.Outer,
		})
	}

	for _, mn := range m.Nodes {
		t := core.NewTransform()
		t.Position = mgl32.Vec3(mn.Translation)
		t.SetEuler(mgl32.Vec3(mn.Rotation))
		if mn.Scale != nil {
			t.Scale = mgl32.Vec3(*mn.Scale)
		}
		b.Nodes = append(b.Nodes, NodeData{
			Name:   mn.Name,
			Local:  t.Matrix(),
			Parent: ref(mn.Parent),
			Mesh:   ref(mn.Mesh),
			Light:  ref(mn.Light),
		})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return b, nil
}
