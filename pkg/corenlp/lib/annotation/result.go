// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package annotation

import "errors"

// ErrNotAnnotated is the cause reported for a document that failed without
// recording a specific exception.
var ErrNotAnnotated = errors.New("document was not annotated")

// Result is the tagged outcome of running a pipeline: either a successfully
// annotated document, or a document that failed with a cause.
type Result struct {
	doc *Document
	err error
}

// Succeeded wraps an annotated document.
func Succeeded(doc *Document) Result {
	return Result{doc: doc}
}

// FailedWith wraps a document whose annotation failed with err.
func FailedWith(doc *Document, err error) Result {
	if err == nil {
		err = ErrNotAnnotated
	}
	return Result{doc: doc, err: err}
}

// ResultOf classifies doc by its exception marker.
func ResultOf(doc *Document) Result {
	if doc == nil {
		return FailedWith(nil, ErrNotAnnotated)
	}
	if doc.Exception != nil {
		return FailedWith(doc, doc.Exception)
	}
	return Succeeded(doc)
}

// OK reports whether annotation succeeded.
func (r Result) OK() bool { return r.err == nil }

// Err returns the failure cause, or nil on success.
func (r Result) Err() error { return r.err }

// Document returns the document in either state. For failed results the
// layers other than the exception marker must not be trusted.
func (r Result) Document() *Document { return r.doc }

// Unwrap returns the document on success and the failure cause otherwise.
func (r Result) Unwrap() (*Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.doc, nil
}
