/*
Package events implements PixelForge's Progress Bus: a per-task topic
that fans progress events out to any number of subscribers, decoupling
workers from whatever transport (SSE, polling) eventually delivers
progress to a client. Topics live from Open until GraceWindow after
their terminal event, so a subscriber attaching just after completion
still observes the outcome.
*/
package events
