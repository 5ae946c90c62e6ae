// Copyright 2025 Poiesic Systems
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


// Package file implements storage.CollectionStore on plain JSON files.
//
// Layout under the data directory:
//
//	users.json, agents.json, conversations.json      collections
//	index/<name>.json                                 derived indexes
//	messages/<log>.jsonl                              one entry per line
//
// Collections are replaced by writing a temporary file in the same directory
// and renaming it into place, so readers see either the old or the new
// document. The revision of a collection is the BLAKE2b digest of its bytes.
//
// Revision checks and appends are serialized per name inside one process.
// Nothing coordinates separate processes sharing a directory.
package file
