// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import "runtime"

// yield cooperatively gives up the current goroutine's turn, avoiding a
// busy core when emulating blocking on top of a non-blocking link.
func yield() { runtime.Gosched() }
