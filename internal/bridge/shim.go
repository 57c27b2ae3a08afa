package bridge

import (
	"fmt"
	"strings"

	"github.com/cryguy/fnbridge/internal/marshal"
)

// Names of the Go callbacks the shim captures and then removes from the
// global scope.
const (
	fnEventField = "__bridge_event_field"
	fnEventBody  = "__bridge_event_body"
	fnLog        = "__bridge_log"
	fnLogWith    = "__bridge_log_with"

	bytesInSlot  = "__bridge_bytes_in"
	bytesOutSlot = "__bridge_bytes_out"

	globalBinaryMode = "__bridge_binary_mode"
	globalWorkerName = "__bridge_worker_name"

	moduleGlobal = "__bridge_module__"
)

// shimJS defines globalThis.__bridge__, the only guest-side entry point the
// Go side calls. Every entry returns a JSON string and never throws.
const shimJS = `
(function(g) {
	'use strict';
	var eventField = g.__bridge_event_field;
	var eventBody = g.__bridge_event_body;
	var logFn = g.__bridge_log;
	var logWithFn = g.__bridge_log_with;
	var binaryMode = String(g.__bridge_binary_mode || '');
	var workerName = String(g.__bridge_worker_name || '');
	delete g.__bridge_event_field;
	delete g.__bridge_event_body;
	delete g.__bridge_log;
	delete g.__bridge_log_with;
	delete g.__bridge_binary_mode;
	delete g.__bridge_worker_name;

	var FIELDS = %s;
	var MEMO = { headers: true, fields: true };
	var handler = null;
	var pending = null;
	var current = null;
	var userData = {};

	function enter(nonce) {
		if (current !== null) return false;
		current = nonce;
		return true;
	}

	function unwrapHostError(e) {
		var msg = String(e && e.message !== undefined ? e.message : e);
		return new ReferenceError(msg.replace(/^calling __bridge_[a-z_]+: /, ''));
	}

	function hostResult(r) {
		if (typeof r === 'string' && r.charAt(0) === '!') throw new ReferenceError(r.slice(1));
		return r;
	}

	function decodeField(s) {
		var d = JSON.parse(s);
		if (d.t === 'date') return d.v === null ? null : new Date(d.v);
		return d.v;
	}

	function Response(body, headers, contentType, statusCode) {
		if (!(this instanceof Response)) return new Response(body, headers, contentType, statusCode);
		if (body !== null && typeof body === 'object' && arguments.length === 1 &&
			!(body instanceof ArrayBuffer) && !ArrayBuffer.isView(body) &&
			('body' in body || 'status_code' in body || 'content_type' in body || 'headers' in body)) {
			var o = body;
			body = o.body; headers = o.headers; contentType = o.content_type; statusCode = o.status_code;
		}
		if (body === undefined || body === null) body = '';
		var isBytes = body instanceof ArrayBuffer || ArrayBuffer.isView(body);
		if (typeof body !== 'string' && !isBytes) {
			body = JSON.stringify(body);
			if (contentType === undefined || contentType === null) contentType = 'application/json';
		}
		this.body = body;
		this.headers = headers === undefined || headers === null ? {} : headers;
		this.content_type = contentType === undefined || contentType === null ? 'text/plain' : contentType;
		this.status_code = statusCode === undefined || statusCode === null ? 200 : statusCode;
	}

	function makeEvent(nonce, h) {
		var ev = {};
		var memo = {};
		function read(name) {
			var r;
			try {
				r = eventField(nonce, h, name);
			} catch (e) {
				throw unwrapHostError(e);
			}
			return decodeField(hostResult(r));
		}
		FIELDS.forEach(function(name) {
			Object.defineProperty(ev, name, {
				enumerable: true,
				get: function() {
					if (!MEMO[name]) return read(name);
					if (!Object.prototype.hasOwnProperty.call(memo, name)) memo[name] = read(name);
					return memo[name];
				}
			});
		});
		Object.defineProperty(ev, 'body_bytes', {
			enumerable: false,
			get: function() {
				var r;
				try {
					r = eventBody(nonce, h);
				} catch (e) {
					throw unwrapHostError(e);
				}
				r = hostResult(r);
				if (r === 'slot') {
					var buf = g[%q];
					delete g[%q];
					return new Uint8Array(buf);
				}
				return new Uint8Array(JSON.parse(r));
			}
		});
		return Object.freeze(ev);
	}

	function toMessage(m) {
		if (typeof m === 'string') return m;
		if (m instanceof Error) return String(m.stack || m);
		if (m !== null && typeof m === 'object') {
			try {
				var s = JSON.stringify(m);
				if (typeof s === 'string') return s;
			} catch (e) {}
		}
		return String(m);
	}

	function toFields(f) {
		if (f === null || typeof f !== 'object' || Array.isArray(f)) return '{}';
		try {
			var s = JSON.stringify(f);
			return typeof s === 'string' ? s : '{}';
		} catch (e) {
			return '{}';
		}
	}

	function makeLogger(nonce, h) {
		var hs = String(h);
		function plain(level) {
			return function(message, fields) {
				if (arguments.length > 1) logWithFn(nonce, hs, level, toMessage(message), toFields(fields));
				else logFn(nonce, hs, level, toMessage(message));
			};
		}
		function withFields(level) {
			return function(message, fields) {
				logWithFn(nonce, hs, level, toMessage(message), toFields(fields));
			};
		}
		return Object.freeze({
			error: plain('error'),
			warn: plain('warn'),
			info: plain('info'),
			debug: plain('debug'),
			errorWith: withFields('error'),
			warnWith: withFields('warn'),
			infoWith: withFields('info'),
			debugWith: withFields('debug')
		});
	}

	function makeContext(nonce, h) {
		var logger = makeLogger(nonce, h);
		return Object.freeze({
			logger: logger,
			Response: Response,
			userData: userData,
			worker: workerName,
			log_error: logger.error,
			log_warn: logger.warn,
			log_info: logger.info,
			log_debug: logger.debug,
			log_error_with: logger.errorWith,
			log_warn_with: logger.warnWith,
			log_info_with: logger.infoWith,
			log_debug_with: logger.debugWith
		});
	}

	function kindOf(v) {
		if (v === undefined) return 'undefined';
		if (v === null) return 'null';
		if (v instanceof Response) return 'response';
		var t = typeof v;
		if (t === 'string') return 'string';
		if (t === 'number' || t === 'boolean' || t === 'bigint' || t === 'symbol' || t === 'function') return t;
		if (v instanceof String) return 'string';
		if (v instanceof ArrayBuffer || ArrayBuffer.isView(v)) return 'bytes';
		if (Array.isArray(v)) return 'array';
		return 'object';
	}

	function putBytes(v, d) {
		var view = v instanceof ArrayBuffer ? new Uint8Array(v) : new Uint8Array(v.buffer, v.byteOffset, v.byteLength);
		if (binaryMode === 'ab' || binaryMode === 'sab') {
			var buf = binaryMode === 'sab' ? new SharedArrayBuffer(view.length) : new ArrayBuffer(view.length);
			new Uint8Array(buf).set(view);
			g[%q] = buf;
			d.transferred = true;
		} else {
			d.byteArray = Array.prototype.slice.call(view);
		}
	}

	function encode(v, d) {
		try {
			var s = JSON.stringify(v);
			if (typeof s === 'string') d.json = s;
			else d.jsonError = 'value has no JSON representation';
		} catch (e) {
			d.jsonError = String(e && e.message !== undefined ? e.message : e);
		}
	}

	function scalar(v, allowBytes) {
		var k = kindOf(v);
		var d = { kind: k };
		switch (k) {
		case 'string':
			d.str = String(v);
			break;
		case 'number':
			if (isFinite(v)) d.num = v;
			encode(v, d);
			break;
		case 'boolean':
			d.bool = v;
			encode(v, d);
			break;
		case 'bytes':
			if (allowBytes) putBytes(v, d);
			break;
		case 'null':
		case 'array':
		case 'object':
			encode(v, d);
			break;
		}
		return d;
	}

	var MEMBERS = ['body', 'status_code', 'content_type', 'headers'];

	function describe(v) {
		var d = scalar(v, true);
		if (d.kind === 'array') {
			d.length = v.length;
			if (v.length === 2) d.items = [scalar(v[0], false), scalar(v[1], true)];
		} else if (d.kind === 'object' || d.kind === 'response') {
			d.members = {};
			MEMBERS.forEach(function(m) {
				if (m in v) d.members[m] = scalar(v[m], m === 'body');
			});
		}
		return d;
	}

	function describeError(e) {
		var d = { name: '', message: '', stack: '' };
		try {
			if (e !== null && typeof e === 'object') {
				d.name = e.name === undefined ? '' : String(e.name);
				d.message = e.message === undefined ? String(e) : String(e.message);
				d.stack = e.stack ? String(e.stack) : '';
				if (typeof e.lineNumber === 'number') d.line = e.lineNumber;
				if (typeof e.columnNumber === 'number') d.column = e.columnNumber;
			} else {
				d.message = String(e);
			}
		} catch (x) {
			d.message = 'exception could not be described';
		}
		return d;
	}

	function ok(v) {
		try {
			return JSON.stringify({ ok: true, value: describe(v) });
		} catch (e) {
			return fail(e);
		}
	}

	function fail(e) {
		return JSON.stringify({ ok: false, error: describeError(e) });
	}

	function isThenable(v) {
		return v !== null && (typeof v === 'object' || typeof v === 'function') &&
			!(v instanceof Response) && typeof v.then === 'function';
	}

	function lookup(name) {
		var mod = g.%s;
		if (mod !== undefined && mod !== null && name.indexOf('.') < 0) {
			if (name in Object(mod)) return { found: true, value: mod[name] };
			var def = mod['default'];
			if (def !== undefined && def !== null && name in Object(def)) return { found: true, value: def[name] };
		}
		var cjs = g.module;
		if (cjs !== undefined && cjs !== null && name.indexOf('.') < 0) {
			var ex = cjs.exports;
			if (ex !== undefined && ex !== null && Object.prototype.hasOwnProperty.call(Object(ex), name)) {
				return { found: true, value: ex[name] };
			}
		}
		var v;
		try {
			v = (0, eval)(name);
		} catch (e) {
			if (e instanceof ReferenceError) return { found: false };
			throw e;
		}
		if (v === undefined && name.indexOf('.') >= 0) return { found: false };
		return { found: true, value: v };
	}

	var bridge = {
		resolve: function(name) {
			if (handler !== null) return 'already';
			try {
				var r = lookup(name);
				if (!r.found) return 'missing';
				if (typeof r.value !== 'function') return 'not_callable';
				handler = r.value;
				return 'ok';
			} catch (e) {
				return 'missing';
			}
		},
		init: function(nonce) {
			if (!enter(nonce)) return fail(new Error('invocation already active'));
			var r;
			try {
				r = lookup('initContext');
			} catch (e) {
				return ok(undefined);
			}
			if (!r.found || typeof r.value !== 'function') return ok(undefined);
			try {
				var out = r.value.call(g, makeContext(nonce, '0'));
				if (isThenable(out)) {
					pending = { settled: false };
					trackPromise(out);
					return JSON.stringify({ ok: true, pending: true });
				}
				return ok(undefined);
			} catch (e) {
				return fail(e);
			}
		},
		invoke: function(nonce, ctxH, evH) {
			if (handler === null) return fail(new Error('handler not resolved'));
			if (!enter(nonce)) return fail(new Error('invocation already active'));
			var out;
			try {
				out = handler.call(g, makeContext(nonce, ctxH), makeEvent(nonce, evH));
			} catch (e) {
				return fail(e);
			}
			if (isThenable(out)) {
				pending = { settled: false };
				trackPromise(out);
				return JSON.stringify({ ok: true, pending: true });
			}
			return ok(out);
		},
		settle: function() {
			var p = pending;
			pending = null;
			if (p === null) return fail(new Error('no pending call'));
			if (!p.settled) return JSON.stringify({ ok: false, error: { name: '', message: 'pending', stack: '' }, pending: true });
			if (p.rejected) return fail(p.error);
			return ok(p.value);
		},
		end: function(nonce) {
			if (current === nonce) {
				current = null;
				pending = null;
			}
			return 'ok';
		}
	};

	function trackPromise(out) {
		var p = pending;
		try {
			Promise.resolve(out).then(function(v) {
				p.settled = true;
				p.value = v;
			}, function(e) {
				p.settled = true;
				p.rejected = true;
				p.error = e;
			});
		} catch (e) {
			p.settled = true;
			p.rejected = true;
			p.error = e;
		}
	}

	var commonModule = { exports: {} };
	Object.defineProperty(g, 'module', { value: commonModule, enumerable: false, writable: true, configurable: true });
	Object.defineProperty(g, 'exports', { value: commonModule.exports, enumerable: false, writable: true, configurable: true });

	Object.defineProperty(g, '__bridge__', { value: Object.freeze(bridge), enumerable: false, writable: false, configurable: false });
})(globalThis);
`

// buildShim renders shimJS with the event field list and slot names.
func buildShim() string {
	quoted := make([]string, len(marshal.EventFields))
	for i, f := range marshal.EventFields {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	return fmt.Sprintf(shimJS,
		"["+strings.Join(quoted, ", ")+"]",
		bytesInSlot, bytesInSlot,
		bytesOutSlot,
		moduleGlobal,
	)
}
