package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const bnEpsilon = 1e-5

// Param is a named model parameter backed by a dense float64 tensor. The
// tensor is the live storage: loading a checkpoint copies into its backing.
type Param struct {
	Name  string
	Value *tensor.Dense
}

type BackboneConfig struct {
	Depths      []int
	InChannels  int
	BaseWidth   int
	InitialPool bool
}

// Backbone is the residual embedding network: a 5x5 stride-2 stem, four
// stages of basic blocks, and a global average pool. Batch norm runs with
// stored running statistics folded into per-channel scale and shift.
type Backbone struct {
	cfg    BackboneConfig
	outDim int
	params []*Param
	byName map[string]*Param
}

func newBackbone(cfg BackboneConfig) (*Backbone, error) {
	if cfg.Depths == nil {
		cfg.Depths = []int{2, 2, 2, 2}
	}
	if len(cfg.Depths) != 4 {
		return nil, fmt.Errorf("expected 4 stage depths, got %d", len(cfg.Depths))
	}
	if cfg.InChannels == 0 {
		cfg.InChannels = 3
	}
	if cfg.BaseWidth == 0 {
		cfg.BaseWidth = 64
	}

	b := &Backbone{
		cfg:    cfg,
		outDim: cfg.BaseWidth * 8,
		byName: map[string]*Param{},
	}

	b.addConv("conv1.weight", cfg.BaseWidth, cfg.InChannels, 5)
	b.addBatchNorm("bn1", cfg.BaseWidth)

	widths := []int{cfg.BaseWidth, cfg.BaseWidth * 2, cfg.BaseWidth * 4, cfg.BaseWidth * 8}
	strides := []int{1, 2, 2, 2}

	in := cfg.BaseWidth
	for stage, depth := range cfg.Depths {
		out := widths[stage]
		for block := range depth {
			stride := 1
			if block == 0 {
				stride = strides[stage]
			}
			prefix := fmt.Sprintf("layer%d.%d", stage+1, block)
			b.addConv(prefix+".conv1.weight", out, in, 3)
			b.addBatchNorm(prefix+".bn1", out)
			b.addConv(prefix+".conv2.weight", out, out, 3)
			b.addBatchNorm(prefix+".bn2", out)
			if stride != 1 || in != out {
				b.addConv(prefix+".downsample.0.weight", out, in, 1)
				b.addBatchNorm(prefix+".downsample.1", out)
			}
			in = out
		}
	}

	return b, nil
}

func (b *Backbone) OutDim() int {
	return b.outDim
}

func (b *Backbone) register(name string, backing []float64, shape ...int) {
	p := &Param{
		Name: name,
		Value: tensor.New(
			tensor.WithShape(shape...),
			tensor.Of(tensor.Float64),
			tensor.WithBacking(backing),
		),
	}
	b.params = append(b.params, p)
	b.byName[name] = p
}

// addConv registers a convolution weight with kaiming-normal fan-out
// initialization.
func (b *Backbone) addConv(name string, out, in, kernel int) {
	backing := make([]float64, out*in*kernel*kernel)
	std := math.Sqrt(2.0 / float64(out*kernel*kernel))
	for i := range backing {
		backing[i] = rand.NormFloat64() * std
	}
	b.register(name, backing, out, in, kernel, kernel)
}

// addBatchNorm registers gamma=1, beta=0 and identity running statistics.
func (b *Backbone) addBatchNorm(prefix string, channels int) {
	ones := make([]float64, channels)
	for i := range ones {
		ones[i] = 1
	}
	b.register(prefix+".weight", ones, channels)
	b.register(prefix+".bias", make([]float64, channels), channels)
	b.register(prefix+".running_mean", make([]float64, channels), channels)
	variance := make([]float64, channels)
	for i := range variance {
		variance[i] = 1
	}
	b.register(prefix+".running_var", variance, channels)
}

func (b *Backbone) paramNode(g *gorgonia.ExprGraph, name string) *gorgonia.Node {
	p := b.byName[name]
	return gorgonia.NewTensor(g, tensor.Float64, len(p.Value.Shape()),
		gorgonia.WithShape(p.Value.Shape()...),
		gorgonia.WithName(name),
		gorgonia.WithValue(p.Value))
}

func (b *Backbone) conv(g *gorgonia.ExprGraph, x *gorgonia.Node, name string, kernel, pad, stride int) *gorgonia.Node {
	w := b.paramNode(g, name)
	return gorgonia.Must(gorgonia.Conv2d(x, w,
		tensor.Shape{kernel, kernel},
		[]int{pad, pad}, []int{stride, stride}, []int{1, 1}))
}

// batchNorm applies the folded inference-mode transform
// y = x*gamma/sqrt(var+eps) + (beta - mean*gamma/sqrt(var+eps)).
func (b *Backbone) batchNorm(g *gorgonia.ExprGraph, x *gorgonia.Node, prefix string) *gorgonia.Node {
	gamma := b.byName[prefix+".weight"].Value.Data().([]float64)
	beta := b.byName[prefix+".bias"].Value.Data().([]float64)
	mean := b.byName[prefix+".running_mean"].Value.Data().([]float64)
	variance := b.byName[prefix+".running_var"].Value.Data().([]float64)

	channels := len(gamma)
	scale := make([]float64, channels)
	shift := make([]float64, channels)
	for i := range channels {
		inv := gamma[i] / math.Sqrt(variance[i]+bnEpsilon)
		scale[i] = inv
		shift[i] = beta[i] - mean[i]*inv
	}

	scaleNode := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(1, channels, 1, 1),
		gorgonia.WithName(prefix+".scale"),
		gorgonia.WithValue(tensor.New(
			tensor.WithShape(1, channels, 1, 1),
			tensor.Of(tensor.Float64),
			tensor.WithBacking(scale),
		)))
	shiftNode := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(1, channels, 1, 1),
		gorgonia.WithName(prefix+".shift"),
		gorgonia.WithValue(tensor.New(
			tensor.WithShape(1, channels, 1, 1),
			tensor.Of(tensor.Float64),
			tensor.WithBacking(shift),
		)))

	out := gorgonia.Must(gorgonia.BroadcastHadamardProd(x, scaleNode, nil, []byte{0, 2, 3}))
	return gorgonia.Must(gorgonia.BroadcastAdd(out, shiftNode, nil, []byte{0, 2, 3}))
}

func (b *Backbone) basicBlock(g *gorgonia.ExprGraph, x *gorgonia.Node, prefix string, stride int, downsample bool) *gorgonia.Node {
	out := b.conv(g, x, prefix+".conv1.weight", 3, 1, stride)
	out = b.batchNorm(g, out, prefix+".bn1")
	out = gorgonia.Must(gorgonia.Rectify(out))
	out = b.conv(g, out, prefix+".conv2.weight", 3, 1, 1)
	out = b.batchNorm(g, out, prefix+".bn2")

	identity := x
	if downsample {
		identity = b.conv(g, x, prefix+".downsample.0.weight", 1, 0, stride)
		identity = b.batchNorm(g, identity, prefix+".downsample.1")
	}

	out = gorgonia.Must(gorgonia.Add(out, identity))
	return gorgonia.Must(gorgonia.Rectify(out))
}

// Embed runs the forward pass over a batch of images with shape
// (N, channels, H, W) and returns one embedding row per image.
func (b *Backbone) Embed(images *tensor.Dense) (*mat.Dense, error) {
	if images == nil {
		return nil, fmt.Errorf("nil image batch")
	}
	if images.Dims() != 4 {
		return nil, fmt.Errorf("expected 4-dimensional image batch, got %d dimensions", images.Dims())
	}
	if images.Shape()[1] != b.cfg.InChannels {
		return nil, fmt.Errorf("expected %d channels, got %d", b.cfg.InChannels, images.Shape()[1])
	}
	if images.Dtype() != tensor.Float64 {
		return nil, fmt.Errorf("expected float64 images, got %v", images.Dtype())
	}

	g := gorgonia.NewGraph()
	x := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(images.Shape()...),
		gorgonia.WithName("images"),
		gorgonia.WithValue(images))

	x = b.conv(g, x, "conv1.weight", 5, 1, 2)
	x = b.batchNorm(g, x, "bn1")
	x = gorgonia.Must(gorgonia.Rectify(x))
	if b.cfg.InitialPool {
		x = gorgonia.Must(gorgonia.MaxPool2D(x, tensor.Shape{3, 3}, []int{1, 1}, []int{2, 2}))
	}

	strides := []int{1, 2, 2, 2}
	in := b.cfg.BaseWidth
	widths := []int{b.cfg.BaseWidth, b.cfg.BaseWidth * 2, b.cfg.BaseWidth * 4, b.cfg.BaseWidth * 8}
	for stage, depth := range b.cfg.Depths {
		out := widths[stage]
		for block := range depth {
			stride := 1
			if block == 0 {
				stride = strides[stage]
			}
			prefix := fmt.Sprintf("layer%d.%d", stage+1, block)
			x = b.basicBlock(g, x, prefix, stride, block == 0 && (stride != 1 || in != out))
			in = out
		}
	}

	// pool one spatial axis at a time; a joint Mean over both axes panics
	// on 1x1 maps
	pooled := gorgonia.Must(gorgonia.Mean(x, 3))
	pooled = gorgonia.Must(gorgonia.Mean(pooled, 2))

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("embedding forward pass failed: %v", err)
	}

	n := images.Shape()[0]
	data := pooled.Value().Data().([]float64)
	backing := make([]float64, len(data))
	copy(backing, data)
	return mat.NewDense(n, b.outDim, backing), nil
}
