// Package editor implements the preview and save pipelines behind the image
// editor endpoint.
//
// A request flows through three stages, each of which may reject it:
//
//   - ParsePreviewInput / ParseImageID turn untrusted form or JSON values into
//     an EditRequest. Filter parameters are clamped to their ranges rather
//     than rejected.
//   - Validator.Source resolves the image id and checks file size, header
//     dimensions and the estimated decode memory. No pixel data is decoded
//     until every check has passed.
//   - PreviewPipeline.Generate or SavePipeline.Save does the work.
//
// Every failure is an *Error whose Kind selects the HTTP status and log
// level and whose Message is safe to return to the client.
package editor
