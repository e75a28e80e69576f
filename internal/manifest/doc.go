// Package manifest reads and writes function definitions as HCL, for bulk
// import and export of a registry.
//
// A manifest file holds any number of function blocks:
//
//	function "line" {
//	  description = "a straight line"
//	  source      = "def f(x, a=1, b=0):\n    return a*x + b"
//	  independent = "x"
//	  returns     = "float"
//
//	  parameter "a" {
//	    type    = "float"
//	    default = 1
//	  }
//	  parameter "b" {
//	    default = 0
//	  }
//	}
//
// When a block declares neither independent nor any parameter, the signature
// is left empty and the registry extracts it from the source.
package manifest
