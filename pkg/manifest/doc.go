// Package manifest reads target manifests: YAML files naming a target's
// sources, binary dependencies, outputs and compilers. A manifest is turned
// into the BuildContext and runner registry a build needs.
//
//	target: //app:core
//	base_dir: src
//	output: out/core.jar
//	abi_output: out/core-abi.jar
//	sources: [main]
//	exclude: ["*.bak"]
//	deps: [lib/util-abi.jar]
//	args: [-g]
//	compilers:
//	  - name: javac
//	    kind: exec
//	    extensions: [.java]
//	    command: [tools/javac-wrapper]
//	  - name: resources
//	    kind: resource
//	    extensions: [.properties]
//	    strip_prefix: main/
//
// Relative paths are resolved against the manifest's directory.
package manifest
