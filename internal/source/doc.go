// Package source provides the module variants built from files on disk
// and the factory that creates them for resolved requests.
//
// Scripts are scanned for the import forms that matter to the module graph,
// either line by line or, with ParserSyntax, from a tree-sitter syntax tree.
package source
