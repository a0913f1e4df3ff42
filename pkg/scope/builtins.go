package scope

// pythonBuiltin reports whether name is bound by Python's builtins module.
// A dynamic scope cannot hide where a builtin comes from, so resolution
// keeps these exact.
func pythonBuiltin(name string) bool {
	return builtinNames[name]
}

var builtinNames = map[string]bool{
	"abs": true, "aiter": true, "all": true, "anext": true, "any": true,
	"ascii": true, "bin": true, "bool": true, "breakpoint": true,
	"bytearray": true, "bytes": true, "callable": true, "chr": true,
	"classmethod": true, "compile": true, "complex": true, "delattr": true,
	"dict": true, "dir": true, "divmod": true, "enumerate": true,
	"eval": true, "exec": true, "filter": true, "float": true,
	"format": true, "frozenset": true, "getattr": true, "globals": true,
	"hasattr": true, "hash": true, "help": true, "hex": true, "id": true,
	"input": true, "int": true, "isinstance": true, "issubclass": true,
	"iter": true, "len": true, "list": true, "locals": true, "map": true,
	"max": true, "memoryview": true, "min": true, "next": true,
	"object": true, "oct": true, "open": true, "ord": true, "pow": true,
	"print": true, "property": true, "range": true, "repr": true,
	"reversed": true, "round": true, "set": true, "setattr": true,
	"slice": true, "sorted": true, "staticmethod": true, "str": true,
	"sum": true, "super": true, "tuple": true, "type": true, "vars": true,
	"zip": true, "__import__": true,

	"NotImplemented": true, "Ellipsis": true, "__debug__": true,
	"__name__": true, "__file__": true, "__doc__": true,
	"__package__": true, "__spec__": true, "__loader__": true,
	"__builtins__": true, "__class__": true,

	"BaseException": true, "BaseExceptionGroup": true, "Exception": true,
	"ExceptionGroup": true, "GeneratorExit": true, "KeyboardInterrupt": true,
	"SystemExit": true, "ArithmeticError": true, "AssertionError": true,
	"AttributeError": true, "BlockingIOError": true, "BrokenPipeError": true,
	"BufferError": true, "ChildProcessError": true,
	"ConnectionAbortedError": true, "ConnectionError": true,
	"ConnectionRefusedError": true, "ConnectionResetError": true,
	"EOFError": true, "EnvironmentError": true, "FileExistsError": true,
	"FileNotFoundError": true, "FloatingPointError": true,
	"ImportError": true, "IndentationError": true, "IndexError": true,
	"InterruptedError": true, "IOError": true, "IsADirectoryError": true,
	"KeyError": true, "LookupError": true, "MemoryError": true,
	"ModuleNotFoundError": true, "NameError": true,
	"NotADirectoryError": true, "NotImplementedError": true,
	"OSError": true, "OverflowError": true, "PermissionError": true,
	"ProcessLookupError": true, "RecursionError": true,
	"ReferenceError": true, "RuntimeError": true,
	"StopAsyncIteration": true, "StopIteration": true, "SyntaxError": true,
	"SystemError": true, "TabError": true, "TimeoutError": true,
	"TypeError": true, "UnboundLocalError": true,
	"UnicodeDecodeError": true, "UnicodeEncodeError": true,
	"UnicodeError": true, "UnicodeTranslateError": true,
	"ValueError": true, "ZeroDivisionError": true,

	"Warning": true, "BytesWarning": true, "DeprecationWarning": true,
	"EncodingWarning": true, "FutureWarning": true, "ImportWarning": true,
	"PendingDeprecationWarning": true, "ResourceWarning": true,
	"RuntimeWarning": true, "SyntaxWarning": true, "UnicodeWarning": true,
	"UserWarning": true,
}
