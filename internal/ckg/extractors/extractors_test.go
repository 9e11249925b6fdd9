package extractors

import (
	"strings"
	"testing"
)

func TestExtractPythonFunctionsAndClasses(t *testing.T) {
	src := []byte(`def top_level(x):
    return x

class Greeter:
    greeting = "hi"

    def greet(self):
        return self.greeting
`)
	res, ok := Extract("a.py", src)
	if !ok {
		t.Fatal("expected .py to be supported")
	}

	if len(res.Functions) != 2 {
		t.Fatalf("expected 2 functions (top_level + greet), got %d: %+v", len(res.Functions), res.Functions)
	}
	if len(res.Classes) != 1 || res.Classes[0].Name != "Greeter" {
		t.Fatalf("expected class Greeter, got %+v", res.Classes)
	}
	if !strings.Contains(res.Classes[0].Fields, "greeting") {
		t.Errorf("expected class-level attribute greeting in Fields, got %q", res.Classes[0].Fields)
	}
	if !strings.Contains(res.Classes[0].Methods, "greet") {
		t.Errorf("expected greet in Methods, got %q", res.Classes[0].Methods)
	}

	var method *FunctionEntry
	for i := range res.Functions {
		if res.Functions[i].Name == "greet" {
			method = &res.Functions[i]
		}
	}
	if method == nil {
		t.Fatal("expected to find method greet")
	}
	if method.ParentClass != "Greeter" {
		t.Errorf("ParentClass = %q, want Greeter", method.ParentClass)
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	_, ok := Extract("notes.txt", []byte("hello"))
	if ok {
		t.Error("expected .txt to be unsupported")
	}
	if Supported(".txt") {
		t.Error("Supported(.txt) should be false")
	}
	if !Supported(".py") {
		t.Error("Supported(.py) should be true")
	}
}

func TestExtractJavaNestedClassesFieldsAndMethods(t *testing.T) {
	src := []byte(`public class Outer {
    private int count;

    class Inner {
        void tick() {
        }
    }

    void run() {
    }
}
`)
	res, ok := Extract("Outer.java", src)
	if !ok {
		t.Fatal("expected .java to be supported")
	}

	if len(res.Classes) != 2 {
		t.Fatalf("expected classes Outer and Inner, got %+v", res.Classes)
	}
	var outer *ClassEntry
	for i := range res.Classes {
		if res.Classes[i].Name == "Outer" {
			outer = &res.Classes[i]
		}
	}
	if outer == nil {
		t.Fatal("expected to find class Outer")
	}
	if !strings.Contains(outer.Fields, "count") {
		t.Errorf("expected field count on Outer, got %q", outer.Fields)
	}
	if !strings.Contains(outer.Methods, "run") {
		t.Errorf("expected method run on Outer, got %q", outer.Methods)
	}

	parents := map[string]string{}
	for _, f := range res.Functions {
		parents[f.Name] = f.ParentClass
	}
	if parents["run"] != "Outer" {
		t.Errorf("run ParentClass = %q, want Outer", parents["run"])
	}
	if parents["tick"] != "Inner" {
		t.Errorf("tick ParentClass = %q, want Inner", parents["tick"])
	}
}

func TestExtractCFunctionsIgnoreStructs(t *testing.T) {
	src := []byte(`struct point {
    int x;
    int y;
};

static int add(int a, int b) {
    return a + b;
}
`)
	res, ok := Extract("a.c", src)
	if !ok {
		t.Fatal("expected .c to be supported")
	}

	if len(res.Classes) != 0 {
		t.Errorf("C structs should not produce class entries, got %+v", res.Classes)
	}
	if len(res.Functions) != 1 || res.Functions[0].Name != "add" {
		t.Fatalf("expected exactly function add, got %+v", res.Functions)
	}
	if res.Functions[0].ParentClass != "" {
		t.Errorf("expected no parent class for a C function, got %q", res.Functions[0].ParentClass)
	}
}

func TestExtractCPPClassFieldsAndMethods(t *testing.T) {
	src := []byte(`class Box {
public:
    int width;
    int height;

    int area() {
        return width * height;
    }
};

int free_fn() {
    return 0;
}
`)
	res, ok := Extract("a.cpp", src)
	if !ok {
		t.Fatal("expected .cpp to be supported")
	}

	if len(res.Classes) != 1 || res.Classes[0].Name != "Box" {
		t.Fatalf("expected class Box, got %+v", res.Classes)
	}
	box := res.Classes[0]
	if !strings.Contains(box.Fields, "width") || !strings.Contains(box.Fields, "height") {
		t.Errorf("expected width and height in Fields, got %q", box.Fields)
	}
	if !strings.Contains(box.Methods, "area") {
		t.Errorf("expected area in Methods, got %q", box.Methods)
	}

	foundArea, foundFree := false, false
	for _, f := range res.Functions {
		if f.Name == "area" && f.ParentClass == "Box" {
			foundArea = true
		}
		if f.Name == "free_fn" && f.ParentClass == "" {
			foundFree = true
		}
	}
	if !foundArea {
		t.Error("expected inline method area with parent class Box")
	}
	if !foundFree {
		t.Error("expected free_fn with no parent class")
	}
}

func TestExtractTypeScriptClassFieldsAndMethods(t *testing.T) {
	src := []byte(`function helper(): number {
  return 1;
}

class Service {
  name: string;

  run(): number {
    return 2;
  }
}
`)
	res, ok := Extract("a.ts", src)
	if !ok {
		t.Fatal("expected .ts to be supported")
	}

	if len(res.Classes) != 1 || res.Classes[0].Name != "Service" {
		t.Fatalf("expected class Service, got %+v", res.Classes)
	}
	if !strings.Contains(res.Classes[0].Fields, "name") {
		t.Errorf("expected field name on Service, got %q", res.Classes[0].Fields)
	}
	if !strings.Contains(res.Classes[0].Methods, "run") {
		t.Errorf("expected method run on Service, got %q", res.Classes[0].Methods)
	}

	foundHelper, foundRun := false, false
	for _, f := range res.Functions {
		if f.Name == "helper" && f.ParentClass == "" {
			foundHelper = true
		}
		if f.Name == "run" && f.ParentClass == "Service" {
			foundRun = true
		}
	}
	if !foundHelper {
		t.Error("expected top-level function helper")
	}
	if !foundRun {
		t.Error("expected method run with parent class Service")
	}
}

func TestExtractJavaScriptClassMethod(t *testing.T) {
	src := []byte(`function standalone() {
  return 1;
}

class Widget {
  visible = true;

  render() {
    return null;
  }
}
`)
	res, ok := Extract("a.js", src)
	if !ok {
		t.Fatal("expected .js to be supported")
	}
	if len(res.Classes) != 1 || res.Classes[0].Name != "Widget" {
		t.Fatalf("expected class Widget, got %+v", res.Classes)
	}
	if !strings.Contains(res.Classes[0].Fields, "visible") {
		t.Errorf("expected field visible on Widget, got %q", res.Classes[0].Fields)
	}

	foundStandalone, foundRender := false, false
	for _, f := range res.Functions {
		if f.Name == "standalone" && f.ParentClass == "" {
			foundStandalone = true
		}
		if f.Name == "render" && f.ParentClass == "Widget" {
			foundRender = true
		}
	}
	if !foundStandalone {
		t.Error("expected standalone function with no parent class")
	}
	if !foundRender {
		t.Error("expected render method with parent class Widget")
	}
}
