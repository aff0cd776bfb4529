// Package detector runs an SSD-MobileNet object detection network through
// OpenCV (gocv) and reports the most confident animal it finds as a pet
// classification.
//
// The network is the COCO-trained TensorFlow model (frozen_inference_graph.pb
// plus its .pbtxt config). Only animal classes are considered; cats and dogs
// map to their own categories, every other animal to "other".
package detector
