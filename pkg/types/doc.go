/*
Package types defines the core data structures shared across PixelForge.

It contains the domain model every other package builds on: the Task
a client submits, the Images it produces, and the ProviderConfig rows
that describe the upstream generative services PixelForge can reach.

# Core Types

  - Task: one client submission to generate Count images from one prompt
  - TaskStatus: queued, processing, completed, partial, failed — exactly
    these five, per the fixed state machine
  - Image: one produced (or attempted) artifact belonging to a Task
  - ImageStatus: pending, success, failed
  - ProviderConfig: one registered upstream provider
  - GenerateParams / RefImage: the normalized request shape a Provider
    Adapter validates and consumes

All types are plain structs serialized to JSON for the metadata store
and the HTTP API; there are no hidden defaults applied by this package —
validation and normalization live in pkg/provider and pkg/manager.
*/
package types
