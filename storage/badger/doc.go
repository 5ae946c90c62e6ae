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


// Package badger implements storage.CollectionStore on BadgerDB.
//
// Collections are stored as the same JSON documents the file backend writes,
// keyed by name. Next to each document sits a decimal revision counter; the
// compare against the caller's revision and the bump both happen in one
// optimistic transaction, so a concurrent writer either commits first and
// makes the other see ErrConflict, or loses on commit with the same result.
//
// Log entries are keyed by name and a big-endian BadgerDB sequence value, so
// a prefix scan returns them in append order.
package badger
