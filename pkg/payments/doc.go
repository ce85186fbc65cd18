// Copyright 2025 Kadir Pekel
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

// Package payments implements tip and Golden Boost payment initiation.
//
// Amounts are integer cents. Commission rates are basis points, so a 15%
// tip commission is 1500. CalculateFees rounds half up to the nearest cent.
//
// A Service runs every request through the throttle, validates the amount,
// computes the fees and writes a pending Transaction to a Store. Settlement
// happens out of process.
package payments
