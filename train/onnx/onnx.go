// Package onnx serializes a trained gbdt ensemble into the ONNX model
// format consumed by the external serving engine.
//
// The emitted graph is a single ai.onnx.ml TreeEnsembleClassifier node —
// the same layout onnxmltools produces when converting LightGBM boosters —
// with a float32 input tensor "float_input" of shape [None, featureCount]
// and outputs "label" (int64) and "probabilities" (float32, [None,
// numClasses]). Encoding uses protowire against the onnx.proto3 field
// numbers directly; the ecosystem's generated ONNX bindings live under
// internal packages and cannot be imported.
package onnx

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/geoinfer/region-trainer/train/gbdt"
)

// InputTensorName is the graph input consumed by the serving engine.
const InputTensorName = "float_input"

// Tensor element types from onnx.proto3 (TensorProto.DataType).
const (
	elemFloat = 1
	elemInt64 = 7
)

// AttributeProto.AttributeType values.
const (
	attrTypeFloats  = 6
	attrTypeInts    = 7
	attrTypeStrings = 8
	attrTypeString  = 3
)

// Export serializes the ensemble as an ONNX ModelProto.
func Export(model *gbdt.Model) ([]byte, error) {
	if model == nil || model.NumRounds() == 0 {
		return nil, fmt.Errorf("cannot export an empty model")
	}
	if model.NumFeatures < 1 || model.NumClasses < 2 {
		return nil, fmt.Errorf("model shape invalid: %d features, %d classes",
			model.NumFeatures, model.NumClasses)
	}

	ensemble := flatten(model)

	node := encodeNode("TreeEnsembleClassifier", "ai.onnx.ml",
		[]string{InputTensorName}, []string{"label", "probabilities"},
		[][]byte{
			attrInts("class_ids", ensemble.classIDs),
			attrInts("class_nodeids", ensemble.classNodeIDs),
			attrInts("class_treeids", ensemble.classTreeIDs),
			attrFloats("class_weights", ensemble.classWeights),
			attrInts("classlabels_int64s", classLabels(model.NumClasses)),
			attrInts("nodes_falsenodeids", ensemble.falseNodeIDs),
			attrInts("nodes_featureids", ensemble.featureIDs),
			attrInts("nodes_missing_value_tracks_true", make([]int64, len(ensemble.nodeIDs))),
			attrStrings("nodes_modes", ensemble.modes),
			attrInts("nodes_nodeids", ensemble.nodeIDs),
			attrInts("nodes_treeids", ensemble.treeIDs),
			attrInts("nodes_truenodeids", ensemble.trueNodeIDs),
			attrFloats("nodes_values", ensemble.values),
			attrString("post_transform", "SOFTMAX"),
		})

	graph := encodeGraph("region_classifier",
		[][]byte{node},
		[][]byte{encodeValueInfo(InputTensorName, elemFloat, batchDim(), valueDim(int64(model.NumFeatures)))},
		[][]byte{
			encodeValueInfo("label", elemInt64, batchDim()),
			encodeValueInfo("probabilities", elemFloat, batchDim(), valueDim(int64(model.NumClasses))),
		})

	return encodeModel(graph), nil
}

// flatEnsemble holds the TreeEnsembleClassifier attribute arrays.
type flatEnsemble struct {
	treeIDs      []int64
	nodeIDs      []int64
	featureIDs   []int64
	modes        []string
	values       []float64
	trueNodeIDs  []int64
	falseNodeIDs []int64
	classTreeIDs []int64
	classNodeIDs []int64
	classIDs     []int64
	classWeights []float64
}

// flatten walks every tree of the ensemble into the parallel attribute
// arrays. Tree IDs are assigned round-major (round * numClasses + class) so
// each tree's leaves vote for exactly its own class.
func flatten(model *gbdt.Model) *flatEnsemble {
	e := &flatEnsemble{}
	for round, trees := range model.Trees {
		for class, tree := range trees {
			treeID := int64(round*model.NumClasses + class)
			for i, n := range tree.Nodes {
				e.treeIDs = append(e.treeIDs, treeID)
				e.nodeIDs = append(e.nodeIDs, int64(i))
				if tree.IsLeaf(i) {
					e.featureIDs = append(e.featureIDs, 0)
					e.modes = append(e.modes, "LEAF")
					e.values = append(e.values, 0)
					e.trueNodeIDs = append(e.trueNodeIDs, 0)
					e.falseNodeIDs = append(e.falseNodeIDs, 0)

					e.classTreeIDs = append(e.classTreeIDs, treeID)
					e.classNodeIDs = append(e.classNodeIDs, int64(i))
					e.classIDs = append(e.classIDs, int64(class))
					e.classWeights = append(e.classWeights, n.Value)
					continue
				}
				e.featureIDs = append(e.featureIDs, int64(n.Feature))
				e.modes = append(e.modes, "BRANCH_LEQ")
				e.values = append(e.values, n.Threshold)
				e.trueNodeIDs = append(e.trueNodeIDs, int64(n.Left))
				e.falseNodeIDs = append(e.falseNodeIDs, int64(n.Right))
			}
		}
	}
	return e
}

func classLabels(numClasses int) []int64 {
	labels := make([]int64, numClasses)
	for i := range labels {
		labels[i] = int64(i)
	}
	return labels
}

// --- protowire encoding against onnx.proto3 field numbers ---

// encodeModel builds the top-level ModelProto.
func encodeModel(graph []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType) // ir_version
	b = protowire.AppendVarint(b, 7)
	b = appendStringField(b, 2, "region-trainer") // producer_name
	b = appendStringField(b, 3, "1.0")            // producer_version
	b = appendBytesField(b, 7, graph)             // graph
	b = appendBytesField(b, 8, encodeOpset("ai.onnx.ml", 1))
	b = appendBytesField(b, 8, encodeOpset("", 9))
	return b
}

// encodeOpset builds an OperatorSetIdProto.
func encodeOpset(domain string, version int64) []byte {
	var b []byte
	if domain != "" {
		b = appendStringField(b, 1, domain)
	}
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(version))
	return b
}

// encodeGraph builds a GraphProto from encoded nodes, inputs, and outputs.
func encodeGraph(name string, nodes, inputs, outputs [][]byte) []byte {
	var b []byte
	for _, n := range nodes {
		b = appendBytesField(b, 1, n)
	}
	b = appendStringField(b, 2, name)
	for _, in := range inputs {
		b = appendBytesField(b, 11, in)
	}
	for _, out := range outputs {
		b = appendBytesField(b, 12, out)
	}
	return b
}

// encodeNode builds a NodeProto with the given attributes.
func encodeNode(opType, domain string, inputs, outputs []string, attrs [][]byte) []byte {
	var b []byte
	for _, in := range inputs {
		b = appendStringField(b, 1, in)
	}
	for _, out := range outputs {
		b = appendStringField(b, 2, out)
	}
	b = appendStringField(b, 3, opType) // name; reuse op type
	b = appendStringField(b, 4, opType)
	for _, a := range attrs {
		b = appendBytesField(b, 5, a)
	}
	b = appendStringField(b, 7, domain)
	return b
}

// encodeValueInfo builds a ValueInfoProto for a tensor with the given
// element type and dimensions.
func encodeValueInfo(name string, elemType int, dims ...[]byte) []byte {
	var shape []byte
	for _, d := range dims {
		shape = appendBytesField(shape, 1, d) // TensorShapeProto.dim
	}

	var tensor []byte
	tensor = protowire.AppendTag(tensor, 1, protowire.VarintType) // elem_type
	tensor = protowire.AppendVarint(tensor, uint64(elemType))
	tensor = appendBytesField(tensor, 2, shape)

	typeProto := appendBytesField(nil, 1, tensor) // TypeProto.tensor_type

	var b []byte
	b = appendStringField(b, 1, name)
	b = appendBytesField(b, 2, typeProto)
	return b
}

// batchDim is the symbolic batch dimension ("N", the ONNX spelling of a
// [None, ...] shape).
func batchDim() []byte {
	return appendStringField(nil, 2, "N") // Dimension.dim_param
}

// valueDim is a concrete dimension.
func valueDim(v int64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType) // Dimension.dim_value
	b = protowire.AppendVarint(b, uint64(v))
	return b
}

// attrInts builds an AttributeProto of type INTS.
func attrInts(name string, vals []int64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	var b []byte
	b = appendStringField(b, 1, name)
	b = appendBytesField(b, 8, packed)
	b = appendAttrType(b, attrTypeInts)
	return b
}

// attrFloats builds an AttributeProto of type FLOATS. ONNX attribute floats
// are float32 on the wire.
func attrFloats(name string, vals []float64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendFixed32(packed, math.Float32bits(float32(v)))
	}
	var b []byte
	b = appendStringField(b, 1, name)
	b = appendBytesField(b, 7, packed)
	b = appendAttrType(b, attrTypeFloats)
	return b
}

// attrStrings builds an AttributeProto of type STRINGS.
func attrStrings(name string, vals []string) []byte {
	var b []byte
	b = appendStringField(b, 1, name)
	for _, v := range vals {
		b = appendStringField(b, 9, v)
	}
	b = appendAttrType(b, attrTypeStrings)
	return b
}

// attrString builds an AttributeProto of type STRING.
func attrString(name, val string) []byte {
	var b []byte
	b = appendStringField(b, 1, name)
	b = appendStringField(b, 4, val)
	b = appendAttrType(b, attrTypeString)
	return b
}

func appendAttrType(b []byte, t int) []byte {
	b = protowire.AppendTag(b, 20, protowire.VarintType) // AttributeProto.type
	return protowire.AppendVarint(b, uint64(t))
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
