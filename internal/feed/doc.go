// package feed fetches the station's recently-played payload and
// normalizes its heterogeneous items into deduplicated records.
//
// The station endpoint has renamed fields more than once over the
// years; extraction works off ordered candidate-key tables rather
// than a fixed schema.
package feed
