// Package vertex groups one-dimensional track longitudinal coordinates into
// candidate interaction vertices using a single-pass, density-based
// clustering kernel.
//
// The kernel runs in strictly ordered phases over a preallocated WorkSpace:
// binning, neighbour counting, core linking, chain flattening, edge
// attachment, labelling and label broadcast. Each phase reads state the
// previous phase wrote for every track, so the parallel variant places a
// full barrier between phases. The output is a dense zero-based vertex id
// per track, with NoiseID marking tracks that belong to no vertex.
package vertex
