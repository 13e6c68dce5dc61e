/*
Neuropil is a toolkit for curating neuron segmentation labels.  It loads an intensity
volume and one or more label volumes, lets a curator move whole labels from one label
layer to another by placing points, relabels volumes to consecutive IDs, and exports
label layers as 16-bit PNG slices.

Documentation can be found nicely formatted at http://godoc.org/github.com/janelia-flyem/neuropil

Packages

	npil        volumes, element types, serialization, logging and command parsing
	labels      relabeling, point sets and point-driven label transfer
	imageio     TIFF stacks, image directories and PNG slice export
	workspace   named layers and the transfer and save controls
	storage     layer checkpoints, cloud buckets and the kafka mutation feed
	server      HTTP host for the curation controls

Commands

In the following documentation, the type of brackets designate
<required parameter> and [optional parameter].

	neuropil about

Prints the version of the toolkit and of the volume serialization format.

	neuropil info <path>

Prints the shape and type of a volume and the voxel count of its largest labels.  A path
may be a multipage TIFF, a single image or a directory of image slices.

	neuropil relabel <input> <outdir>
	neuropil relabel-pair <dendrite> <axon> <outdir>

Relabels each volume so that its nonzero labels become 1..N in increasing order of the
original label, then writes 0000.png, 0001.png, ... into the output directory.  The pair
form writes into <outdir>/dendrite and <outdir>/axon.

	neuropil transfer <from> <to> <points.csv> [from-out=DIR] [to-out=DIR]

For each point, the label under it in <from> is moved in its entirety into <to>.  Both
volumes are then exported as PNG slices.

	neuropil export <input> [dir=saved_labels_png]

	neuropil serve [config.toml]

Starts an HTTP server for the layers named in the TOML configuration.  See
server.WebHelp for the API.
*/
package neuropil
