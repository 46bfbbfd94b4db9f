/*
Package config loads PixelForge's single YAML configuration file and
layers environment and CLI-flag overrides on top of it, the same
precedence order the teacher's cmd/warren flags-then-env pattern
follows: defaults, then the file, then SERVER_HOST/PIXELFORGE_CONTAINER,
then whatever cmd/pixelforge's cobra flags set explicitly.
*/
package config
