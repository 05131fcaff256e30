/*
Package protocol is the Request Protocol Layer of the visit engine.

It turns a domain.VisitRequest into an HTTP request carrying the protocol
headers (marker, asset version, partial-reload selection), sends it, and
classifies the response:

  - a well-formed page with the held version (any status, validation
    failures included) is a success;
  - a well-formed page with another version, or a 409 carrying a location
    header, is a version mismatch that calls for a full reload;
  - anything else is a failure (malformed payload or network failure).

Redirects are followed by the HTTP stack; a 303 is followed as GET. Starting
a new Perform aborts the previous one still in flight.

The package also bootstraps the first page from the root HTML document.
*/
package protocol
